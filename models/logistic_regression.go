package models

import (
	"io"

	"github.com/YuminosukeSato/scigo-serve/core/model"
	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/sklearn/linear_model"
)

// LogisticRegressionOptions are the accepted model_configuration keys of
// "logistic_regression", named as in scikit-learn.
type LogisticRegressionOptions struct {
	C            *float64 `json:"C"`
	MaxIter      *int     `json:"max_iter"`
	Tol          *float64 `json:"tol"`
	FitIntercept *bool    `json:"fit_intercept"`
	Solver       string   `json:"solver"`
	RandomState  *int64   `json:"random_state"`
}

func (o LogisticRegressionOptions) validate() error {
	switch {
	case o.C != nil && *o.C <= 0:
		return errors.NewConfigError("model", LogisticRegression, "C must be positive")
	case o.MaxIter != nil && *o.MaxIter <= 0:
		return errors.NewConfigError("model", LogisticRegression, "max_iter must be positive")
	case o.Tol != nil && *o.Tol < 0:
		return errors.NewConfigError("model", LogisticRegression, "tol must be non-negative")
	}
	switch o.Solver {
	case "", linear_model.SolverLBFGS, linear_model.SolverGD:
	default:
		return errors.NewConfigError("model", LogisticRegression, `solver must be "lbfgs" or "gd"`)
	}
	return nil
}

func (o LogisticRegressionOptions) options() []linear_model.LogisticRegressionOption {
	var opts []linear_model.LogisticRegressionOption
	if o.C != nil {
		opts = append(opts, linear_model.WithLRC(*o.C))
	}
	if o.MaxIter != nil {
		opts = append(opts, linear_model.WithLRMaxIter(*o.MaxIter))
	}
	if o.Tol != nil {
		opts = append(opts, linear_model.WithLRTol(*o.Tol))
	}
	if o.FitIntercept != nil {
		opts = append(opts, linear_model.WithLogisticFitIntercept(*o.FitIntercept))
	}
	if o.Solver != "" {
		opts = append(opts, linear_model.WithLRSolver(o.Solver))
	}
	if o.RandomState != nil {
		opts = append(opts, linear_model.WithLRRandomState(*o.RandomState))
	}
	return opts
}

// logisticEstimator persists coefficients as ModelWeights JSON.
type logisticEstimator struct {
	*linear_model.LogisticRegression
}

func newLogisticEstimator(params map[string]any) (Estimator, error) {
	var o LogisticRegressionOptions
	if err := decodeParams(LogisticRegression, params, &o); err != nil {
		return nil, err
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return logisticEstimator{linear_model.NewLogisticRegression(o.options()...)}, nil
}

func (e logisticEstimator) SaveState(w io.Writer) error {
	weights, err := e.ExportWeights()
	if err != nil {
		return err
	}
	_, err = weights.WriteTo(w)
	return err
}

func (e logisticEstimator) LoadState(r io.Reader) error {
	weights, err := model.ReadWeights(r)
	if err != nil {
		return err
	}
	return e.ImportWeights(weights)
}
