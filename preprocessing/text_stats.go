package preprocessing

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"gonum.org/v1/gonum/mat"
	"golang.org/x/text/unicode/norm"

	"github.com/YuminosukeSato/scigo-serve/core/frame"
	"github.com/YuminosukeSato/scigo-serve/core/model"
	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

// TextStatsName はTextStatsのレジストリ名です。
const TextStatsName = "text_stats"

// textStatFeatures は出力列の順序です。
var textStatFeatures = []string{"chars", "words", "upper_ratio", "exclamations", "questions", "digit_ratio"}

func init() {
	Register(TextStatsName, func(params Params) (Preprocessor, error) {
		var opts TextStatsOptions
		if err := decodeParams(TextStatsName, params, &opts); err != nil {
			return nil, err
		}
		return NewTextStats(opts), nil
	})
}

// TextStatsOptions はTextStatsのパラメータです。
type TextStatsOptions struct {
	TextColumn    string `json:"text_column"`
	ColumnsSuffix string `json:"columns_suffix"`
	// Scale が true（既定値）の場合、学習時の平均と標準偏差で標準化します
	Scale *bool `json:"scale"`
}

// TextStats はテキスト列から簡単な統計量を計算し、密な数値列として追加します。
// 列は "chars", "words", "upper_ratio", "exclamations", "questions", "digit_ratio" に
// 接尾辞（既定値: "_stat"）を付けた名前になります。
type TextStats struct {
	opts   TextStatsOptions
	scaler *StandardScaler
}

// NewTextStats は新しいTextStatsを作成します。
func NewTextStats(opts TextStatsOptions) *TextStats {
	if opts.TextColumn == "" {
		opts.TextColumn = "text"
	}
	if opts.ColumnsSuffix == "" {
		opts.ColumnsSuffix = "_stat"
	}
	return &TextStats{opts: opts, scaler: NewStandardScaler(true, true)}
}

// Name は登録名を返します。
func (s *TextStats) Name() string { return TextStatsName }

func (s *TextStats) scaled() bool { return boolOr(s.opts.Scale, true) }

func (s *TextStats) features(t *frame.Table, op string) (*mat.Dense, error) {
	col, ok := t.Column(s.opts.TextColumn)
	if !ok {
		return nil, errors.NewValueError(op, fmt.Sprintf("column %q not found", s.opts.TextColumn))
	}
	if col.Kind() != frame.Text {
		return nil, errors.NewValueError(op, fmt.Sprintf("column %q is %s, want text", s.opts.TextColumn, col.Kind()))
	}
	n := col.Len()
	if n == 0 {
		return nil, nil
	}
	out := mat.NewDense(n, len(textStatFeatures), nil)
	for i := 0; i < n; i++ {
		out.SetRow(i, textStatRow(col.Text(i)))
	}
	return out, nil
}

// textStatRow は1文書の正規化前の統計量を計算します。
func textStatRow(doc string) []float64 {
	doc = norm.NFKC.String(doc)
	var letters, upper, digits, excl, quest float64
	for _, r := range doc {
		switch {
		case unicode.IsLetter(r):
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		case unicode.IsDigit(r):
			digits++
		case r == '!':
			excl++
		case r == '?':
			quest++
		}
	}
	chars := float64(utf8.RuneCountInString(doc))
	row := []float64{chars, float64(len(strings.Fields(doc))), 0, excl, quest, 0}
	if letters > 0 {
		row[2] = upper / letters
	}
	if chars > 0 {
		row[5] = digits / chars
	}
	return row
}

// Fit は scale が有効な場合に各統計量の平均と標準偏差を学習します。
func (s *TextStats) Fit(t *frame.Table) error {
	x, err := s.features(t, "TextStats.Fit")
	if err != nil {
		return err
	}
	if x == nil {
		return errors.NewModelError("TextStats.Fit", "empty data", errors.ErrEmptyData)
	}
	s.scaler = NewStandardScaler(true, true)
	if !s.scaled() {
		return nil
	}
	return s.scaler.Fit(x)
}

// Transform は統計量の列を入力の末尾に追加した新しいテーブルを返します。
func (s *TextStats) Transform(t *frame.Table) (*frame.Table, error) {
	if s.scaled() {
		if err := s.scaler.state.RequireFitted("TextStats", "Transform"); err != nil {
			return nil, err
		}
	}
	x, err := s.features(t, "TextStats.Transform")
	if err != nil {
		return nil, err
	}
	cols := make([]frame.Column, len(textStatFeatures))
	if x == nil {
		for j, name := range textStatFeatures {
			cols[j] = frame.DenseColumn(name+s.opts.ColumnsSuffix, nil)
		}
		return t.Append(cols...)
	}
	if s.scaled() {
		if x, err = s.scaler.Transform(x); err != nil {
			return nil, err
		}
	}
	for j, name := range textStatFeatures {
		cols[j] = frame.DenseColumn(name+s.opts.ColumnsSuffix, mat.Col(nil, j, x))
	}
	return t.Append(cols...)
}

type textStatsState struct {
	Options TextStatsOptions
	Scaler  scalerState
}

// MarshalBinary は学習済み状態をgobで符号化します。
func (s *TextStats) MarshalBinary() ([]byte, error) {
	return model.MarshalGob(textStatsState{Options: s.opts, Scaler: s.scaler.snapshot()})
}

// UnmarshalBinary はMarshalBinaryの出力から状態を復元します。
func (s *TextStats) UnmarshalBinary(data []byte) error {
	var st textStatsState
	if err := model.UnmarshalGob(data, &st); err != nil {
		return err
	}
	s.opts = st.Options
	if s.scaler == nil {
		s.scaler = NewStandardScaler(true, true)
	}
	s.scaler.restore(st.Scaler)
	return nil
}
