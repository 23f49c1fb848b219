// Package model defines the estimator contracts shared by the classifier families and
// the helpers they use to keep and persist fitted state.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Classifier is the capability set the model lifecycle needs from an estimator.
// X may be dense or sparse; sparse inputs implement mat.RowNonZeroDoer.
type Classifier interface {
	// Fit trains the estimator from scratch, discarding any previous state.
	Fit(X mat.Matrix, y []int) error

	// Predict returns one class label per row of X.
	Predict(X mat.Matrix) ([]int, error)

	// IsFitted reports whether Fit has completed successfully.
	IsFitted() bool
}

// ProbabilisticClassifier exposes class probabilities.
type ProbabilisticClassifier interface {
	Classifier

	// PredictProba returns an n_samples x n_classes matrix.
	PredictProba(X mat.Matrix) (*mat.Dense, error)

	// Classes returns the sorted class labels seen during fitting.
	Classes() []int
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}
