package models

import (
	"io"

	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/sklearn/lightgbm"
)

// LightGBMOptions are the accepted model_configuration keys of "lightgbm",
// named as in LightGBM's scikit-learn wrapper.
type LightGBMOptions struct {
	NEstimators     *int     `json:"n_estimators"`
	LearningRate    *float64 `json:"learning_rate"`
	NumLeaves       *int     `json:"num_leaves"`
	MaxDepth        *int     `json:"max_depth"`
	MinChildSamples *int     `json:"min_child_samples"`
	MinChildWeight  *float64 `json:"min_child_weight"`
	MinSplitGain    *float64 `json:"min_split_gain"`
	RegLambda       *float64 `json:"reg_lambda"`
	RandomState     *int     `json:"random_state"`
}

func (o LightGBMOptions) validate() error {
	reason := ""
	switch {
	case o.NEstimators != nil && *o.NEstimators <= 0:
		reason = "n_estimators must be positive"
	case o.LearningRate != nil && *o.LearningRate <= 0:
		reason = "learning_rate must be positive"
	case o.NumLeaves != nil && *o.NumLeaves < 2:
		reason = "num_leaves must be at least 2"
	case o.MinChildSamples != nil && *o.MinChildSamples < 1:
		reason = "min_child_samples must be positive"
	case o.MinChildWeight != nil && *o.MinChildWeight < 0:
		reason = "min_child_weight must be non-negative"
	case o.MinSplitGain != nil && *o.MinSplitGain < 0:
		reason = "min_split_gain must be non-negative"
	case o.RegLambda != nil && *o.RegLambda < 0:
		reason = "reg_lambda must be non-negative"
	}
	if reason != "" {
		return errors.NewConfigError("model", LightGBM, reason)
	}
	return nil
}

func (o LightGBMOptions) classifier() *lightgbm.LGBMClassifier {
	clf := lightgbm.NewLGBMClassifier()
	if o.NEstimators != nil {
		clf.WithNumIterations(*o.NEstimators)
	}
	if o.LearningRate != nil {
		clf.WithLearningRate(*o.LearningRate)
	}
	if o.NumLeaves != nil {
		clf.WithNumLeaves(*o.NumLeaves)
	}
	if o.MaxDepth != nil {
		clf.WithMaxDepth(*o.MaxDepth)
	}
	if o.MinChildSamples != nil {
		clf.WithMinChildSamples(*o.MinChildSamples)
	}
	if o.MinChildWeight != nil {
		clf.MinChildWeight = *o.MinChildWeight
	}
	if o.MinSplitGain != nil {
		clf.WithMinSplitGain(*o.MinSplitGain)
	}
	if o.RegLambda != nil {
		clf.WithRegLambda(*o.RegLambda)
	}
	if o.RandomState != nil {
		clf.WithRandomState(*o.RandomState)
	}
	return clf
}

// lightgbmEstimator persists the booster in LightGBM's text model format.
type lightgbmEstimator struct {
	*lightgbm.LGBMClassifier
}

func newLightGBMEstimator(params map[string]any) (Estimator, error) {
	var o LightGBMOptions
	if err := decodeParams(LightGBM, params, &o); err != nil {
		return nil, err
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return lightgbmEstimator{o.classifier()}, nil
}

func (e lightgbmEstimator) SaveState(w io.Writer) error { return e.SaveText(w) }

func (e lightgbmEstimator) LoadState(r io.Reader) error { return e.LoadText(r) }
