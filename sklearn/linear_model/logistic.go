package linear_model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/scigo-serve/core/frame"
	"github.com/YuminosukeSato/scigo-serve/core/model"
	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/pkg/log"
)

// ModelTypeLogisticRegression is the ModelWeights.ModelType of exported weights.
const ModelTypeLogisticRegression = "LogisticRegression"

// Solvers accepted by WithLRSolver.
const (
	SolverLBFGS = "lbfgs"
	SolverGD    = "gd"
)

// LogisticRegression implements L2-regularised logistic regression for classification.
// Compatible with scikit-learn's LogisticRegression: binary problems learn one
// coefficient row, multiclass problems use one-vs-rest.
//
// The objective per coefficient row is
//
//	(1/n) Σ log(1 + exp(-y_i z_i)) + ||w||² / (2 C n)
//
// which has the same minimiser as scikit-learn's 0.5||w||² + C Σ loss. The
// intercept is not penalised. X may be dense or sparse.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	C            float64 // Inverse regularization strength
	fitIntercept bool    // Whether to fit intercept
	randomState  int64   // Random seed (gd solver initialisation)
	solver       string  // Solver: "lbfgs", "gd"
	maxIter      int     // Maximum iterations
	tol          float64 // Tolerance for stopping

	// Model parameters
	coef_      [][]float64 // Coefficients (n_classes x n_features or 1 x n_features for binary)
	intercept_ []float64   // Intercept terms
	classes_   []int       // Unique class labels
	nFeatures_ int         // Number of features
	nIter_     []int       // Actual iterations per row

	logger log.Logger
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		C:            1.0,
		fitIntercept: true,
		randomState:  -1,
		solver:       SolverLBFGS,
		maxIter:      100,
		tol:          1e-4,
		logger:       log.GetLoggerWithName("linear_model").With(log.ModelNameKey, ModelTypeLogisticRegression),
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.fitIntercept = fit }
}

// WithLRSolver sets the optimization solver
func WithLRSolver(solver string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.solver = solver }
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.maxIter = maxIter }
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.tol = tol }
}

// WithLRRandomState sets the random seed. A negative seed draws a fresh one per Fit.
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.randomState = seed }
}

func (lr *LogisticRegression) validateParams() error {
	switch {
	case lr.C <= 0 || math.IsNaN(lr.C):
		return errors.NewValidationError("C", "must be positive", lr.C)
	case lr.maxIter <= 0:
		return errors.NewValidationError("max_iter", "must be positive", lr.maxIter)
	case lr.tol < 0:
		return errors.NewValidationError("tol", "must be non-negative", lr.tol)
	}
	switch lr.solver {
	case SolverLBFGS, SolverGD:
	default:
		return errors.NewValidationError("solver", `must be "lbfgs" or "gd"`, lr.solver)
	}
	return nil
}

// Fit trains the logistic regression model, discarding any previous fit.
func (lr *LogisticRegression) Fit(X mat.Matrix, y []int) (err error) {
	defer errors.Recover(&err, "LogisticRegression.Fit")

	if err := lr.validateParams(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(y) != nSamples {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, len(y), 0)
	}

	classes := uniqueSorted(y)
	if len(classes) < 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("this solver needs samples of at least 2 classes in the data, but the data contains only one class: %d", classes[0]))
	}

	lr.state.Reset()
	lr.classes_ = classes
	lr.nFeatures_ = nFeatures

	// binary problems learn a single row for the positive (larger) class
	targets := classes
	if len(classes) == 2 {
		targets = classes[1:]
	}
	lr.coef_ = make([][]float64, len(targets))
	lr.intercept_ = make([]float64, len(targets))
	lr.nIter_ = make([]int, len(targets))

	seed := lr.randomState
	if seed < 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))

	prob := newLogisticProblem(X, lr.C, lr.fitIntercept)
	for k, class := range targets {
		for i, label := range y {
			prob.y[i] = 0
			if label == class {
				prob.y[i] = 1
			}
		}

		var x []float64
		var iters int
		if lr.solver == SolverGD {
			x, iters = lr.minimizeGD(prob, rng)
		} else {
			x, iters, err = lr.minimizeLBFGS(prob)
			if err != nil {
				return err
			}
		}
		lr.coef_[k] = x[:nFeatures]
		if lr.fitIntercept {
			lr.intercept_[k] = x[nFeatures]
		}
		lr.nIter_[k] = iters
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()

	lr.logger.Debug("Logistic regression fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.IterationKey, lr.nIter_,
	)
	return nil
}

func uniqueSorted(y []int) []int {
	seen := make(map[int]struct{}, 2)
	for _, label := range y {
		seen[label] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}

// minimizeLBFGS runs gonum's L-BFGS from the zero vector, so results are deterministic.
func (lr *LogisticRegression) minimizeLBFGS(p *logisticProblem) ([]float64, int, error) {
	problem := optimize.Problem{
		Func: p.loss,
		Grad: p.grad,
	}
	settings := &optimize.Settings{
		MajorIterations:   lr.maxIter,
		GradientThreshold: lr.tol,
	}
	x0 := make([]float64, p.dim())

	result, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if result == nil {
		return nil, 0, errors.Wrap(err, "lbfgs")
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, 0, errors.NewModelError("LogisticRegression.Fit", "lbfgs diverged", err)
		}
	}
	if result.Status != optimize.GradientThreshold {
		msg := result.Status.String()
		if err != nil {
			msg = err.Error()
		}
		errors.Warn(errors.NewConvergenceWarning(SolverLBFGS, result.Stats.MajorIterations, msg))
	}
	return result.X, result.Stats.MajorIterations, nil
}

// minimizeGD runs gradient descent with a decaying step from a seeded random start.
func (lr *LogisticRegression) minimizeGD(p *logisticProblem, rng *rand.Rand) ([]float64, int) {
	x := make([]float64, p.dim())
	for j := 0; j < p.nFeatures; j++ {
		x[j] = rng.NormFloat64() * 0.01
	}
	grad := make([]float64, len(x))

	baseLearningRate := 1.0
	for iter := 0; iter < lr.maxIter; iter++ {
		p.grad(grad, x)
		if floats.Norm(grad, math.Inf(1)) < lr.tol {
			return x, iter
		}
		learningRate := baseLearningRate / (1.0 + 0.1*float64(iter))
		floats.AddScaled(x, -learningRate, grad)
	}
	errors.Warn(errors.NewConvergenceWarning(SolverGD, lr.maxIter, ""))
	return x, lr.maxIter
}

// logisticProblem is the objective for one coefficient row. The parameter
// vector is the coefficients followed by the intercept when it is fitted.
type logisticProblem struct {
	X            mat.Matrix
	y            []float64
	nSamples     int
	nFeatures    int
	alpha        float64 // 1 / (C n)
	fitIntercept bool
	z            []float64
}

func newLogisticProblem(X mat.Matrix, C float64, fitIntercept bool) *logisticProblem {
	n, f := X.Dims()
	return &logisticProblem{
		X:            X,
		y:            make([]float64, n),
		nSamples:     n,
		nFeatures:    f,
		alpha:        1 / (C * float64(n)),
		fitIntercept: fitIntercept,
		z:            make([]float64, n),
	}
}

func (p *logisticProblem) dim() int {
	if p.fitIntercept {
		return p.nFeatures + 1
	}
	return p.nFeatures
}

func (p *logisticProblem) scores(x []float64) {
	w := x[:p.nFeatures]
	var b float64
	if p.fitIntercept {
		b = x[p.nFeatures]
	}
	for i := 0; i < p.nSamples; i++ {
		p.z[i] = b + rowDot(p.X, i, w)
	}
}

func (p *logisticProblem) loss(x []float64) float64 {
	p.scores(x)
	var sum float64
	for i, z := range p.z {
		sum += log1pExp(z) - p.y[i]*z
	}
	w := x[:p.nFeatures]
	return sum/float64(p.nSamples) + 0.5*p.alpha*floats.Dot(w, w)
}

func (p *logisticProblem) grad(grad, x []float64) {
	p.scores(x)
	for j := range grad {
		grad[j] = 0
	}
	inv := 1 / float64(p.nSamples)
	var gb float64
	for i, z := range p.z {
		r := (sigmoid(z) - p.y[i]) * inv
		gb += r
		frame.DoRowNonZero(p.X, i, func(j int, v float64) {
			grad[j] += r * v
		})
	}
	floats.AddScaled(grad[:p.nFeatures], p.alpha, x[:p.nFeatures])
	if p.fitIntercept {
		grad[p.nFeatures] = gb
	}
}

func rowDot(X mat.Matrix, i int, w []float64) float64 {
	if csr, ok := X.(*frame.CSR); ok {
		return csr.RowDot(i, w)
	}
	var s float64
	frame.DoRowNonZero(X, i, func(j int, v float64) { s += v * w[j] })
	return s
}

// log1pExp computes log(1 + exp(z)) without overflow.
func log1pExp(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

// sigmoid computes the sigmoid function
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1.0 + e)
}

func (lr *LogisticRegression) checkPredict(X mat.Matrix, method string) error {
	if err := lr.state.RequireFitted(ModelTypeLogisticRegression, method); err != nil {
		return err
	}
	if _, c := X.Dims(); c != lr.nFeatures_ {
		return errors.NewDimensionError("LogisticRegression."+method, lr.nFeatures_, c, 1)
	}
	return nil
}

// DecisionFunction returns the raw scores, one column per coefficient row.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if err := lr.checkPredict(X, "DecisionFunction"); err != nil {
		return nil, err
	}
	nSamples, _ := X.Dims()
	scores := mat.NewDense(nSamples, len(lr.coef_), nil)
	for i := 0; i < nSamples; i++ {
		for k, w := range lr.coef_ {
			scores.Set(i, k, lr.intercept_[k]+rowDot(X, i, w))
		}
	}
	return scores, nil
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) ([]int, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := proba.Dims()
	predictions := make([]int, nSamples)
	if len(lr.classes_) == 2 {
		for i := range predictions {
			predictions[i] = lr.classes_[0]
			if proba.At(i, 1) >= 0.5 {
				predictions[i] = lr.classes_[1]
			}
		}
		return predictions, nil
	}
	for i := range predictions {
		row := proba.RawRowView(i)
		predictions[i] = lr.classes_[floats.MaxIdx(row)]
	}
	return predictions, nil
}

// PredictProba returns probability estimates for each class.
// Multiclass one-vs-rest probabilities are normalised per row.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := scores.Dims()
	probas := mat.NewDense(nSamples, len(lr.classes_), nil)

	if len(lr.classes_) == 2 {
		for i := 0; i < nSamples; i++ {
			p := sigmoid(scores.At(i, 0))
			probas.Set(i, 0, 1-p)
			probas.Set(i, 1, p)
		}
		return probas, nil
	}

	for i := 0; i < nSamples; i++ {
		row := probas.RawRowView(i)
		for k := range row {
			row[k] = sigmoid(scores.At(i, k))
		}
		if sum := floats.Sum(row); sum > 0 {
			floats.Scale(1/sum, row)
		}
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X mat.Matrix, y []int) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	if len(y) != len(predictions) {
		return 0, errors.NewDimensionError("LogisticRegression.Score", len(predictions), len(y), 0)
	}
	correct := 0
	for i, p := range predictions {
		if p == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y)), nil
}

// IsFitted reports whether the model has been fitted.
func (lr *LogisticRegression) IsFitted() bool { return lr.state.IsFitted() }

// Classes returns the class labels seen during fitting.
func (lr *LogisticRegression) Classes() []int { return append([]int(nil), lr.classes_...) }

// NIter returns the iterations used for each coefficient row.
func (lr *LogisticRegression) NIter() []int { return append([]int(nil), lr.nIter_...) }

// Coef returns a copy of the coefficient rows.
func (lr *LogisticRegression) Coef() [][]float64 {
	out := make([][]float64, len(lr.coef_))
	for k, w := range lr.coef_ {
		out[k] = append([]float64(nil), w...)
	}
	return out
}

// Intercept returns a copy of the intercepts.
func (lr *LogisticRegression) Intercept() []float64 { return append([]float64(nil), lr.intercept_...) }

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"random_state":  lr.randomState,
		"solver":        lr.solver,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters. Numbers may be given as any
// numeric type, including the float64 produced by encoding/json.
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "C":
			lr.C, ok = toFloat(value)
		case "fit_intercept":
			lr.fitIntercept, ok = value.(bool)
		case "random_state":
			var f float64
			f, ok = toFloat(value)
			lr.randomState = int64(f)
		case "solver":
			lr.solver, ok = value.(string)
		case "max_iter":
			var f float64
			f, ok = toFloat(value)
			lr.maxIter = int(f)
		case "tol":
			lr.tol, ok = toFloat(value)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

// ExportWeights returns the fitted coefficients in the portable weight format.
func (lr *LogisticRegression) ExportWeights() (*model.ModelWeights, error) {
	if err := lr.state.RequireFitted(ModelTypeLogisticRegression, "ExportWeights"); err != nil {
		return nil, err
	}
	coef := make([]float64, 0, len(lr.coef_)*lr.nFeatures_)
	for _, w := range lr.coef_ {
		coef = append(coef, w...)
	}
	_, nSamples := lr.state.GetDimensions()
	return &model.ModelWeights{
		ModelType:       ModelTypeLogisticRegression,
		Version:         model.WeightsVersion,
		Coefficients:    coef,
		Intercepts:      append([]float64(nil), lr.intercept_...),
		NRows:           len(lr.coef_),
		NFeatures:       lr.nFeatures_,
		Classes:         append([]int(nil), lr.classes_...),
		Hyperparameters: lr.GetParams(),
		Metadata: map[string]interface{}{
			"n_iter":    lr.NIter(),
			"n_samples": nSamples,
		},
		IsFitted: true,
	}, nil
}

// ImportWeights restores fitted coefficients. Hyperparameters are left as configured.
func (lr *LogisticRegression) ImportWeights(w *model.ModelWeights) error {
	if err := w.Validate(); err != nil {
		return errors.NewValueError("LogisticRegression.ImportWeights", err.Error())
	}
	if w.ModelType != ModelTypeLogisticRegression {
		return errors.NewValueError("LogisticRegression.ImportWeights",
			fmt.Sprintf("model type %q, want %q", w.ModelType, ModelTypeLogisticRegression))
	}
	if !w.IsFitted {
		return errors.NewValueError("LogisticRegression.ImportWeights", "weights are not fitted")
	}
	wantRows := len(w.Classes)
	if wantRows == 2 {
		wantRows = 1
	}
	if len(w.Classes) < 2 || w.NRows != wantRows {
		return errors.NewValueError("LogisticRegression.ImportWeights",
			fmt.Sprintf("%d coefficient rows do not fit %d classes", w.NRows, len(w.Classes)))
	}

	lr.state.Reset()
	lr.coef_ = make([][]float64, w.NRows)
	for k := range lr.coef_ {
		lr.coef_[k] = append([]float64(nil), w.Row(k)...)
	}
	lr.intercept_ = append([]float64(nil), w.Intercepts...)
	lr.classes_ = append([]int(nil), w.Classes...)
	lr.nFeatures_ = w.NFeatures
	lr.nIter_ = make([]int, w.NRows)
	lr.state.SetDimensions(w.NFeatures, 0)
	lr.state.SetFitted()
	return nil
}
