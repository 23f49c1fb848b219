package model

import (
	"encoding/json"
	"fmt"
	"io"
)

// WeightsVersion はModelWeightsのフォーマットバージョン
const WeightsVersion = "1"

// ModelWeights は線形モデルの重みを表す構造体（シリアライゼーション用）
//
// Coefficients は行優先で NRows x NFeatures に平坦化された係数行列です。
// 二値分類では NRows=1、one-vs-rest多クラス分類ではクラス数と一致します。
type ModelWeights struct {
	// ModelType はモデルの種類（LogisticRegression等）
	ModelType string `json:"model_type"`

	// Version はフォーマットのバージョン（互換性チェック用）
	Version string `json:"version"`

	// Coefficients は重み係数（行優先）
	Coefficients []float64 `json:"coefficients"`

	// Intercepts は行ごとの切片
	Intercepts []float64 `json:"intercepts"`

	NRows     int `json:"n_rows"`
	NFeatures int `json:"n_features"`

	// Classes は学習時に観測したクラスラベル
	Classes []int `json:"classes,omitempty"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// Metadata は追加のメタデータ（学習時の統計等）
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted"`
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	return json.Unmarshal(data, mw)
}

// WriteTo はModelWeightsをJSONとしてwに書き込みます。
func (mw *ModelWeights) WriteTo(w io.Writer) (int64, error) {
	data, err := mw.ToJSON()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// ReadWeights はrからModelWeightsを読み込み、検証します。
func ReadWeights(r io.Reader) (*ModelWeights, error) {
	var mw ModelWeights
	if err := json.NewDecoder(r).Decode(&mw); err != nil {
		return nil, fmt.Errorf("failed to decode weights: %w", err)
	}
	if err := mw.Validate(); err != nil {
		return nil, err
	}
	return &mw, nil
}

// Row は係数行列のi行目を返します（コピーではありません）。
func (mw *ModelWeights) Row(i int) []float64 {
	return mw.Coefficients[i*mw.NFeatures : (i+1)*mw.NFeatures]
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return fmt.Errorf("model_type is required")
	}
	if mw.Version == "" {
		return fmt.Errorf("version is required")
	}
	if mw.Version != WeightsVersion {
		return fmt.Errorf("unsupported weights version %q", mw.Version)
	}
	if !mw.IsFitted && len(mw.Coefficients) > 0 {
		return fmt.Errorf("unfitted model should not have coefficients")
	}
	if !mw.IsFitted {
		return nil
	}
	if len(mw.Coefficients) == 0 {
		return fmt.Errorf("fitted model must have coefficients")
	}
	if len(mw.Coefficients) != mw.NRows*mw.NFeatures {
		return fmt.Errorf("coefficients length %d does not match shape %dx%d", len(mw.Coefficients), mw.NRows, mw.NFeatures)
	}
	if len(mw.Intercepts) != mw.NRows {
		return fmt.Errorf("intercepts length %d does not match %d rows", len(mw.Intercepts), mw.NRows)
	}
	return nil
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:       mw.ModelType,
		Version:         mw.Version,
		NRows:           mw.NRows,
		NFeatures:       mw.NFeatures,
		IsFitted:        mw.IsFitted,
		Coefficients:    append([]float64(nil), mw.Coefficients...),
		Intercepts:      append([]float64(nil), mw.Intercepts...),
		Classes:         append([]int(nil), mw.Classes...),
		Hyperparameters: make(map[string]interface{}, len(mw.Hyperparameters)),
		Metadata:        make(map[string]interface{}, len(mw.Metadata)),
	}
	for k, v := range mw.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	for k, v := range mw.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}
