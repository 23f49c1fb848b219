// Package metrics は分類モデルの評価指標を提供します。
//
// scikit-learnの accuracy_score / precision_score / recall_score / f1_score と同じ定義で、
// 二値分類では陽性クラス (既定では 1) に対して計算します。
package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

// Option は二値分類指標の設定を変更します。
type Option func(*options)

type options struct {
	posLabel float64
}

// WithPosLabel は陽性クラスのラベルを指定します（既定値: 1）。
func WithPosLabel(label int) Option {
	return func(o *options) { o.posLabel = float64(label) }
}

func buildOptions(opts []Option) options {
	o := options{posLabel: 1}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Confusion は陽性クラスに対する混同行列の集計値です。
type Confusion struct {
	TP, FP, FN, TN int
}

// LabelsToVec は整数ラベルをgonumのベクトルに変換します。
func LabelsToVec(labels []int) *mat.VecDense {
	if len(labels) == 0 {
		return nil
	}
	data := make([]float64, len(labels))
	for i, v := range labels {
		data[i] = float64(v)
	}
	return mat.NewVecDense(len(data), data)
}

func checkInputs(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// Accuracy は正解率 (完全一致したサンプルの割合) を計算します。多クラスにも対応します。
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkInputs("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ConfusionCounts は陽性クラスに対する TP/FP/FN/TN を数えます。
func ConfusionCounts(yTrue, yPred *mat.VecDense, opts ...Option) (Confusion, error) {
	n, err := checkInputs("ConfusionCounts", yTrue, yPred)
	if err != nil {
		return Confusion{}, err
	}
	o := buildOptions(opts)
	var c Confusion
	for i := 0; i < n; i++ {
		actual := yTrue.AtVec(i) == o.posLabel
		predicted := yPred.AtVec(i) == o.posLabel
		switch {
		case actual && predicted:
			c.TP++
		case !actual && predicted:
			c.FP++
		case actual && !predicted:
			c.FN++
		default:
			c.TN++
		}
	}
	return c, nil
}

// Precision は適合率 TP / (TP + FP) を計算します。
// 陽性の予測が無い場合は 0 を返し、UndefinedMetricWarning を発生させます。
func Precision(yTrue, yPred *mat.VecDense, opts ...Option) (float64, error) {
	c, err := ConfusionCounts(yTrue, yPred, opts...)
	if err != nil {
		return 0, err
	}
	return ratio("precision", c.TP, c.TP+c.FP, "no predicted samples"), nil
}

// Recall は再現率 TP / (TP + FN) を計算します。
// 陽性の正解が無い場合は 0 を返し、UndefinedMetricWarning を発生させます。
func Recall(yTrue, yPred *mat.VecDense, opts ...Option) (float64, error) {
	c, err := ConfusionCounts(yTrue, yPred, opts...)
	if err != nil {
		return 0, err
	}
	return ratio("recall", c.TP, c.TP+c.FN, "no true samples"), nil
}

// F1 は適合率と再現率の調和平均 2TP / (2TP + FP + FN) を計算します。
func F1(yTrue, yPred *mat.VecDense, opts ...Option) (float64, error) {
	c, err := ConfusionCounts(yTrue, yPred, opts...)
	if err != nil {
		return 0, err
	}
	return ratio("f1", 2*c.TP, 2*c.TP+c.FP+c.FN, "no true nor predicted samples"), nil
}

func ratio(metric string, num, den int, condition string) float64 {
	if den == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(metric, condition, 0))
		return 0
	}
	return float64(num) / float64(den)
}
