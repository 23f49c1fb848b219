package lightgbm

import (
	"io"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-serve/core/model"
	scigoErrors "github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/pkg/log"
)

// ModelTypeLGBMClassifier is the model name used in logs.
const ModelTypeLGBMClassifier = "LGBMClassifier"

// LGBMClassifier implements a binary LightGBM classifier with scikit-learn compatible API
type LGBMClassifier struct {
	state *model.StateManager

	// Model
	Model *Model

	// Hyperparameters (matching Python LightGBM)
	NumLeaves       int     // Number of leaves in one tree
	MaxDepth        int     // Maximum tree depth, <= 0 for no limit
	LearningRate    float64 // Boosting learning rate
	NumIterations   int     // Number of boosting iterations
	MinChildSamples int     // Minimum number of data in one leaf
	MinChildWeight  float64 // Minimum sum of hessians in one leaf
	MinSplitGain    float64 // Minimum gain to perform a split
	RegLambda       float64 // L2 regularization
	RandomState     int     // Random seed, recorded in the model parameters

	featureNames []string
	logger       log.Logger
}

// NewLGBMClassifier creates a new LightGBM classifier with default parameters
func NewLGBMClassifier() *LGBMClassifier {
	return &LGBMClassifier{
		state:           model.NewStateManager(),
		NumLeaves:       31,
		MaxDepth:        -1, // No limit
		LearningRate:    0.1,
		NumIterations:   100,
		MinChildSamples: 20,
		MinChildWeight:  1e-3,
		RandomState:     42,
		logger:          log.GetLoggerWithName("lightgbm").With(log.ModelNameKey, ModelTypeLGBMClassifier),
	}
}

// WithNumLeaves sets the number of leaves
func (lgb *LGBMClassifier) WithNumLeaves(n int) *LGBMClassifier {
	lgb.NumLeaves = n
	return lgb
}

// WithMaxDepth sets the maximum depth
func (lgb *LGBMClassifier) WithMaxDepth(d int) *LGBMClassifier {
	lgb.MaxDepth = d
	return lgb
}

// WithLearningRate sets the learning rate
func (lgb *LGBMClassifier) WithLearningRate(lr float64) *LGBMClassifier {
	lgb.LearningRate = lr
	return lgb
}

// WithNumIterations sets the number of iterations
func (lgb *LGBMClassifier) WithNumIterations(n int) *LGBMClassifier {
	lgb.NumIterations = n
	return lgb
}

// WithMinChildSamples sets the minimum number of samples per leaf
func (lgb *LGBMClassifier) WithMinChildSamples(n int) *LGBMClassifier {
	lgb.MinChildSamples = n
	return lgb
}

// WithMinSplitGain sets the minimum gain to split
func (lgb *LGBMClassifier) WithMinSplitGain(g float64) *LGBMClassifier {
	lgb.MinSplitGain = g
	return lgb
}

// WithRegLambda sets the L2 regularization
func (lgb *LGBMClassifier) WithRegLambda(l float64) *LGBMClassifier {
	lgb.RegLambda = l
	return lgb
}

// WithRandomState sets the random seed
func (lgb *LGBMClassifier) WithRandomState(seed int) *LGBMClassifier {
	lgb.RandomState = seed
	return lgb
}

// SetFeatureNames sets the names written to the model file. Names are used
// only when their count matches the number of features at Fit.
func (lgb *LGBMClassifier) SetFeatureNames(names []string) {
	lgb.featureNames = append([]string(nil), names...)
}

// Fit trains the classifier, discarding any previous fit. y must contain exactly two classes.
func (lgb *LGBMClassifier) Fit(X mat.Matrix, y []int) (err error) {
	defer scigoErrors.Recover(&err, "LGBMClassifier.Fit")

	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return scigoErrors.NewModelError("LGBMClassifier.Fit", "empty data", scigoErrors.ErrEmptyData)
	}
	if len(y) != rows {
		return scigoErrors.NewDimensionError("LGBMClassifier.Fit", rows, len(y), 0)
	}
	if lgb.NumIterations <= 0 {
		return scigoErrors.NewValidationError("n_estimators", "must be positive", lgb.NumIterations)
	}

	classes := uniqueClasses(y)
	if len(classes) != 2 {
		return scigoErrors.NewValueError("LGBMClassifier.Fit",
			"binary classification requires exactly 2 classes, got "+formatInt(len(classes)))
	}
	target := make([]float64, rows)
	for i, label := range y {
		if label == classes[1] {
			target[i] = 1
		}
	}

	lgb.state.Reset()
	lgb.Model = nil

	trainer := NewTrainer(TrainingParams{
		NumIterations:       lgb.NumIterations,
		LearningRate:        lgb.LearningRate,
		NumLeaves:           lgb.NumLeaves,
		MaxDepth:            lgb.MaxDepth,
		MinDataInLeaf:       lgb.MinChildSamples,
		MinSumHessianInLeaf: lgb.MinChildWeight,
		Lambda:              lgb.RegLambda,
		MinGainToSplit:      lgb.MinSplitGain,
		Seed:                lgb.RandomState,
	})
	if err := trainer.Fit(X, target); err != nil {
		return err
	}

	m := trainer.GetModel()
	m.Classes = classes
	if len(lgb.featureNames) == cols {
		m.FeatureNames = append([]string(nil), lgb.featureNames...)
	}
	lgb.Model = m
	lgb.state.SetDimensions(cols, rows)
	lgb.state.SetFitted()

	lgb.logger.Info("Model fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.IterationKey, len(m.Trees),
	)
	return nil
}

func uniqueClasses(y []int) []int {
	seen := make(map[int]struct{})
	var classes []int
	for _, v := range y {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			classes = append(classes, v)
		}
	}
	sort.Ints(classes)
	return classes
}

// positiveProba returns P(classes[1]) per row.
func (lgb *LGBMClassifier) positiveProba(X mat.Matrix, method string) ([]float64, error) {
	if err := lgb.state.RequireFitted(ModelTypeLGBMClassifier, method); err != nil {
		return nil, err
	}
	return lgb.Model.PredictProba(X)
}

// Predict returns class labels. As in LightGBM's sklearn wrapper the label is
// the argmax of [1-p, p], so p == 0.5 maps to the first class.
func (lgb *LGBMClassifier) Predict(X mat.Matrix) ([]int, error) {
	proba, err := lgb.positiveProba(X, "Predict")
	if err != nil {
		return nil, err
	}
	classes := lgb.Model.Classes
	out := make([]int, len(proba))
	for i, p := range proba {
		if p > 0.5 {
			out[i] = classes[1]
		} else {
			out[i] = classes[0]
		}
	}
	return out, nil
}

// PredictProba returns an n_samples x 2 matrix of class probabilities.
func (lgb *LGBMClassifier) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	proba, err := lgb.positiveProba(X, "PredictProba")
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(proba), 2, nil)
	for i, p := range proba {
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// IsFitted reports whether the classifier has been fitted.
func (lgb *LGBMClassifier) IsFitted() bool { return lgb.state.IsFitted() }

// Classes returns the two class labels.
func (lgb *LGBMClassifier) Classes() []int {
	if lgb.Model == nil {
		return nil
	}
	return append([]int(nil), lgb.Model.Classes...)
}

// FeatureImportances returns "split" or "gain" importance per feature.
func (lgb *LGBMClassifier) FeatureImportances(importanceType string) ([]float64, error) {
	if err := lgb.state.RequireFitted(ModelTypeLGBMClassifier, "FeatureImportances"); err != nil {
		return nil, err
	}
	return lgb.Model.GetFeatureImportance(importanceType), nil
}

// GetParams returns the hyperparameters under their scikit-learn names.
func (lgb *LGBMClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"num_leaves":        lgb.NumLeaves,
		"max_depth":         lgb.MaxDepth,
		"learning_rate":     lgb.LearningRate,
		"n_estimators":      lgb.NumIterations,
		"min_child_samples": lgb.MinChildSamples,
		"min_child_weight":  lgb.MinChildWeight,
		"min_split_gain":    lgb.MinSplitGain,
		"reg_lambda":        lgb.RegLambda,
		"random_state":      lgb.RandomState,
	}
}

// SaveText writes the fitted booster in LightGBM text format.
func (lgb *LGBMClassifier) SaveText(w io.Writer) error {
	if err := lgb.state.RequireFitted(ModelTypeLGBMClassifier, "SaveText"); err != nil {
		return err
	}
	return lgb.Model.SaveText(w)
}

// LoadText replaces the classifier state with a booster read from r.
func (lgb *LGBMClassifier) LoadText(r io.Reader) error {
	m, err := LoadText(r)
	if err != nil {
		return scigoErrors.NewModelError("LGBMClassifier.LoadText", "invalid model file", err)
	}
	lgb.Model = m
	lgb.featureNames = m.FeatureNames
	lgb.state.Reset()
	lgb.state.SetDimensions(m.NumFeatures, 0)
	lgb.state.SetFitted()
	return nil
}
