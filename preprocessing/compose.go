package preprocessing

import (
	"bytes"
	"io"
	"time"

	"github.com/YuminosukeSato/scigo-serve/core/frame"
	"github.com/YuminosukeSato/scigo-serve/core/model"
	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/pkg/log"
)

// ComposeName はComposeのレジストリ名です。入れ子のパイプラインに使えます。
const ComposeName = "compose"

func init() {
	Register(ComposeName, func(params Params) (Preprocessor, error) {
		var cfg ComposeConfig
		if err := decodeParams(ComposeName, params, &cfg); err != nil {
			return nil, err
		}
		return NewCompose(cfg)
	})
}

// Compose は前処理ステップの順序付きパイプラインで、それ自体もPreprocessorです。
//
// Fit は各ステップを「同じ元の入力」に対して順に学習させます（前のステップの出力ではありません）。
// Transform は入力の複製を各ステップに順に通し、ステップiの出力がステップi+1の入力になります。
type Compose struct {
	steps  []Preprocessor
	logger log.Logger
}

// NewCompose は設定からパイプラインを構築します。
// いずれかのステップの構築に失敗した場合はエラーを返し、部分的なパイプラインは返しません。
func NewCompose(cfg ComposeConfig) (*Compose, error) {
	steps := make([]Preprocessor, 0, len(cfg.Preprocessors))
	for _, stepCfg := range cfg.Preprocessors {
		step, err := New(stepCfg)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return NewComposeFromSteps(steps...), nil
}

// NewComposeFromSteps は構築済みのステップからパイプラインを作成します。
func NewComposeFromSteps(steps ...Preprocessor) *Compose {
	return &Compose{
		steps:  steps,
		logger: log.GetLoggerWithName("preprocessing").With(log.PreprocessorKey, ComposeName),
	}
}

// Name は登録名を返します。
func (c *Compose) Name() string { return ComposeName }

// Steps はステップ名を実行順に返します。
func (c *Compose) Steps() []string {
	names := make([]string, len(c.steps))
	for i, s := range c.steps {
		names[i] = s.Name()
	}
	return names
}

// Len はステップ数を返します。
func (c *Compose) Len() int { return len(c.steps) }

// Fit は各ステップを元の入力に対して学習します。
func (c *Compose) Fit(t *frame.Table) error {
	for i, step := range c.steps {
		start := time.Now()
		if err := step.Fit(t); err != nil {
			return errors.Wrapf(err, "fit step %d (%s)", i, step.Name())
		}
		c.logger.Debug("Preprocessing step fitted",
			log.OperationKey, log.OperationFit,
			"step", step.Name(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return nil
}

// Transform は各ステップを順に適用します。
func (c *Compose) Transform(t *frame.Table) (*frame.Table, error) {
	out := t.Clone()
	for i, step := range c.steps {
		var err error
		out, err = step.Transform(out)
		if err != nil {
			return nil, errors.Wrapf(err, "transform step %d (%s)", i, step.Name())
		}
	}
	return out, nil
}

// FitTransform は Fit の後に Transform を実行します。
func (c *Compose) FitTransform(t *frame.Table) (*frame.Table, error) {
	return FitTransform(c, t)
}

type stepState struct {
	Name  string
	State []byte
}

type composeState struct {
	Steps []stepState
}

// MarshalBinary は各ステップの名前と学習済み状態を順に保存します。
func (c *Compose) MarshalBinary() ([]byte, error) {
	state := composeState{Steps: make([]stepState, len(c.steps))}
	for i, step := range c.steps {
		data, err := step.MarshalBinary()
		if err != nil {
			return nil, errors.Wrapf(err, "marshal step %d (%s)", i, step.Name())
		}
		state.Steps[i] = stepState{Name: step.Name(), State: data}
	}
	return model.MarshalGob(state)
}

// UnmarshalBinary はレジストリを使ってステップを再生成し、学習済み状態を復元します。
// 既存のステップは置き換えられます。
func (c *Compose) UnmarshalBinary(data []byte) error {
	var state composeState
	if err := model.UnmarshalGob(data, &state); err != nil {
		return err
	}
	steps := make([]Preprocessor, len(state.Steps))
	for i, s := range state.Steps {
		factory, ok := Lookup(s.Name)
		if !ok {
			return errors.NewUnknownNameError("preprocessor", s.Name, Names())
		}
		step, err := factory(nil)
		if err != nil {
			return err
		}
		if err := step.UnmarshalBinary(s.State); err != nil {
			return errors.Wrapf(err, "unmarshal step %d (%s)", i, s.Name)
		}
		steps[i] = step
	}
	c.steps = steps
	if c.logger == nil {
		c.logger = log.GetLoggerWithName("preprocessing").With(log.PreprocessorKey, ComposeName)
	}
	return nil
}

// Encode はパイプラインの学習済み状態をwに書き込みます。
func (c *Compose) Encode(w io.Writer) error {
	data, err := c.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// DecodeCompose はEncodeで書き込まれたパイプラインを復元します。
func DecodeCompose(r io.Reader) (*Compose, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	c := &Compose{}
	if err := c.UnmarshalBinary(buf.Bytes()); err != nil {
		return nil, err
	}
	return c, nil
}
