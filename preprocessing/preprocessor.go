// Package preprocessing は表形式データに対する学習可能な前処理ステップと、
// それらを設定から組み立てるレジストリおよびパイプライン (Compose) を提供します。
//
// 前処理ステップは frame.Table を受け取り、新しい frame.Table を返します。
// 入力テーブルが変更されることはありません。
//
// 使用例:
//
//	pipeline, err := preprocessing.NewCompose(preprocessing.ComposeConfig{
//	    Preprocessors: []preprocessing.Config{
//	        {Name: "tfidf", Params: preprocessing.Params{"text_column": "text"}},
//	        {Name: "drop", Params: preprocessing.Params{"columns": []any{"text"}}},
//	    },
//	})
//	features, err := pipeline.FitTransform(data.Table())
package preprocessing

import (
	"encoding"

	"github.com/YuminosukeSato/scigo-serve/core/frame"
)

// Preprocessor は名前付きの状態を持つ表変換です。
//
// Fit は学習済み状態を更新します（状態を持たない変換では何もしません）。
// Transform は学習済み状態のみに依存し、入力を変更してはいけません。
// 学習済み状態は MarshalBinary / UnmarshalBinary で永続化されます。
type Preprocessor interface {
	// Name はレジストリに登録された名前を返します。
	Name() string

	Fit(t *frame.Table) error
	Transform(t *frame.Table) (*frame.Table, error)

	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// FitTransform は Fit の後に Transform を実行する既定の実装です。
func FitTransform(p Preprocessor, t *frame.Table) (*frame.Table, error) {
	if err := p.Fit(t); err != nil {
		return nil, err
	}
	return p.Transform(t)
}

// Params は前処理ステップのコンストラクタ引数です。JSONから復元された値を想定します。
type Params map[string]any

// Config は1つの前処理ステップの宣言的な設定です。
type Config struct {
	Name   string `json:"name"`
	Params Params `json:"params,omitempty"`
}

// ComposeConfig は順序付きの前処理パイプラインの設定です。順序が実行順を決めます。
type ComposeConfig struct {
	Preprocessors []Config `json:"preprocessors"`
}
