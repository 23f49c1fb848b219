package linear_model

import (
	"bytes"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-serve/core/frame"
	"github.com/YuminosukeSato/scigo-serve/core/model"
	scigoerrors "github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

func separableBinary() (*mat.Dense, []int) {
	// Class 0: points around (1, 1)
	// Class 1: points around (3, 3)
	X := mat.NewDense(6, 2, []float64{
		0.5, 0.5,
		1.0, 1.5,
		1.5, 1.0,
		3.0, 2.5,
		2.5, 3.0,
		3.5, 3.5,
	})
	return X, []int{0, 0, 0, 1, 1, 1}
}

// TestLogisticRegression_FitPredict_Binary tests binary classification
func TestLogisticRegression_FitPredict_Binary(t *testing.T) {
	X, y := separableBinary()

	for _, solver := range []string{SolverLBFGS, SolverGD} {
		t.Run(solver, func(t *testing.T) {
			lr := NewLogisticRegression(
				WithLRSolver(solver),
				WithLRMaxIter(1000),
				WithLRRandomState(42),
			)
			if err := lr.Fit(X, y); err != nil {
				t.Fatalf("Failed to fit model: %v", err)
			}

			predictions, err := lr.Predict(X)
			if err != nil {
				t.Fatalf("Failed to predict: %v", err)
			}
			for i, pred := range predictions {
				if pred != y[i] {
					t.Errorf("Sample %d: expected %d, got %d", i, y[i], pred)
				}
			}

			XTest := mat.NewDense(2, 2, []float64{
				1.0, 1.0, // Should be class 0
				3.0, 3.0, // Should be class 1
			})
			testPreds, err := lr.Predict(XTest)
			if err != nil {
				t.Fatalf("Failed to predict on test data: %v", err)
			}
			if testPreds[0] != 0 || testPreds[1] != 1 {
				t.Errorf("Expected [0 1], got %v", testPreds)
			}
		})
	}
}

// TestLogisticRegression_PredictProba tests probability predictions
func TestLogisticRegression_PredictProba(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
	})
	y := []int{0, 0, 1, 1}

	lr := NewLogisticRegression(WithLRMaxIter(500))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	probas, err := lr.PredictProba(X)
	if err != nil {
		t.Fatalf("Failed to predict probabilities: %v", err)
	}
	rows, cols := probas.Dims()
	if rows != 4 || cols != 2 {
		t.Fatalf("Expected probas shape (4, 2), got (%d, %d)", rows, cols)
	}

	predictions, _ := lr.Predict(X)
	for i := 0; i < rows; i++ {
		prob0, prob1 := probas.At(i, 0), probas.At(i, 1)
		if prob0 < 0 || prob1 < 0 || math.Abs(prob0+prob1-1) > 1e-9 {
			t.Errorf("Sample %d: invalid probabilities %v, %v", i, prob0, prob1)
		}
		want := 0
		if prob1 >= 0.5 {
			want = 1
		}
		if predictions[i] != want {
			t.Errorf("Sample %d: predicted %d but P(1)=%v", i, predictions[i], prob1)
		}
	}
}

// TestLogisticRegression_Score tests accuracy calculation
func TestLogisticRegression_Score(t *testing.T) {
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 0, 1,
		0, 1, 0,
		0, 1, 1,
		1, 0, 0,
		1, 0, 1,
		1, 1, 0,
		1, 1, 1,
	})
	// class 1 if sum of features > 1.5
	y := []int{0, 0, 0, 1, 0, 1, 1, 1}

	lr := NewLogisticRegression(WithLRMaxIter(1000), WithLRC(10.0))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}
	score, err := lr.Score(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if score < 0.75 {
		t.Errorf("Score too low: %v", score)
	}

	if _, err := lr.Score(X, y[:3]); err == nil {
		t.Error("Expected error for mismatched label count")
	}
}

// TestLogisticRegression_Regularization tests L2 regularization
func TestLogisticRegression_Regularization(t *testing.T) {
	X := mat.NewDense(10, 5, []float64{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
		0, 0, 0, 0, 1,
		1, 1, 0, 0, 0,
		0, 1, 1, 0, 0,
		0, 0, 1, 1, 0,
		0, 0, 0, 1, 1,
		1, 0, 0, 0, 1,
	})
	y := []int{0, 0, 0, 1, 1, 0, 0, 1, 1, 1}

	lrStrong := NewLogisticRegression(WithLRC(0.01), WithLRMaxIter(1000))
	lrWeak := NewLogisticRegression(WithLRC(100.0), WithLRMaxIter(1000))
	if err := lrStrong.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := lrWeak.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	norm := func(w []float64) float64 {
		s := 0.0
		for _, v := range w {
			s += v * v
		}
		return math.Sqrt(s)
	}
	strongNorm := norm(lrStrong.Coef()[0])
	weakNorm := norm(lrWeak.Coef()[0])
	if strongNorm >= weakNorm {
		t.Errorf("Strong regularization should produce smaller weights: strong=%v, weak=%v",
			strongNorm, weakNorm)
	}
}

// TestLogisticRegression_Multiclass tests one-vs-rest multiclass classification
func TestLogisticRegression_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		4, 0,
		5, 1,
		5, -1,
		0, 4,
		1, 5,
		-1, 5,
		-4, -4,
		-5, -4,
		-4, -5,
	})
	y := []int{0, 0, 0, 1, 1, 1, 2, 2, 2}

	lr := NewLogisticRegression(WithLRMaxIter(1000), WithLRC(10.0))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit multiclass model: %v", err)
	}
	if got := lr.Classes(); len(got) != 3 {
		t.Errorf("Expected 3 classes, got %v", got)
	}
	if len(lr.Coef()) != 3 {
		t.Errorf("Expected 3 coefficient rows, got %d", len(lr.Coef()))
	}

	predictions, err := lr.Predict(X)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	for i, pred := range predictions {
		if pred != y[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, y[i], pred)
		}
	}

	probas, err := lr.PredictProba(X)
	if err != nil {
		t.Fatalf("Failed to predict probabilities: %v", err)
	}
	rows, cols := probas.Dims()
	if cols != 3 {
		t.Errorf("Expected 3 probability columns, got %d", cols)
	}
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			sum += probas.At(i, j)
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("Probabilities for sample %d don't sum to 1: %v", i, sum)
		}
	}
}

// TestLogisticRegression_SparseMatchesDense checks that CSR input gives the same fit.
func TestLogisticRegression_SparseMatchesDense(t *testing.T) {
	X, y := separableBinary()
	sparse := frame.CSRFromDense(X)

	dense := NewLogisticRegression()
	if err := dense.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	sp := NewLogisticRegression()
	if err := sp.Fit(sparse, y); err != nil {
		t.Fatal(err)
	}

	dw, sw := dense.Coef()[0], sp.Coef()[0]
	for j := range dw {
		if math.Abs(dw[j]-sw[j]) > 1e-9 {
			t.Errorf("coef %d: dense %v, sparse %v", j, dw[j], sw[j])
		}
	}
	if math.Abs(dense.Intercept()[0]-sp.Intercept()[0]) > 1e-9 {
		t.Errorf("intercept: dense %v, sparse %v", dense.Intercept()[0], sp.Intercept()[0])
	}
}

// TestLogisticRegression_Reproducible checks that a fixed random_state fixes the gd fit.
func TestLogisticRegression_Reproducible(t *testing.T) {
	X, y := separableBinary()
	fit := func() []float64 {
		lr := NewLogisticRegression(WithLRSolver(SolverGD), WithLRRandomState(7), WithLRMaxIter(50))
		scigoerrors.SetWarningHandler(func(error) {})
		defer scigoerrors.SetWarningHandler(nil)
		if err := lr.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		return lr.Coef()[0]
	}
	a, b := fit(), fit()
	for j := range a {
		if a[j] != b[j] {
			t.Errorf("coef %d differs between runs: %v vs %v", j, a[j], b[j])
		}
	}
}

func TestLogisticRegression_ConvergenceWarning(t *testing.T) {
	X, y := separableBinary()

	var warnings []error
	scigoerrors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer scigoerrors.SetWarningHandler(nil)

	lr := NewLogisticRegression(WithLRMaxIter(1))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit should succeed without converging: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("Expected one warning, got %v", warnings)
	}
	var cw *scigoerrors.ConvergenceWarning
	if !scigoerrors.As(warnings[0], &cw) {
		t.Errorf("Expected ConvergenceWarning, got %T", warnings[0])
	}
}

func TestLogisticRegression_ExportImport(t *testing.T) {
	X, y := separableBinary()
	lr := NewLogisticRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	weights, err := lr.ExportWeights()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := weights.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	decoded, err := model.ReadWeights(&buf)
	if err != nil {
		t.Fatal(err)
	}

	restored := NewLogisticRegression()
	if err := restored.ImportWeights(decoded); err != nil {
		t.Fatal(err)
	}
	want, _ := lr.PredictProba(X)
	got, err := restored.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(want, got, 1e-12) {
		t.Errorf("probabilities differ after import:\nwant %v\ngot  %v", mat.Formatted(want), mat.Formatted(got))
	}

	decoded.ModelType = "SomethingElse"
	if err := NewLogisticRegression().ImportWeights(decoded); err == nil {
		t.Error("Expected error for mismatched model type")
	}
}

// TestLogisticRegression_GetSetParams tests parameter management
func TestLogisticRegression_GetSetParams(t *testing.T) {
	lr := NewLogisticRegression()

	params := lr.GetParams()
	if params["C"].(float64) != 1.0 {
		t.Errorf("Default C should be 1.0, got %v", params["C"])
	}
	if params["max_iter"].(int) != 100 {
		t.Errorf("Default max_iter should be 100, got %v", params["max_iter"])
	}

	err := lr.SetParams(map[string]interface{}{
		"C":        2.0,
		"max_iter": float64(200), // as decoded from JSON
		"tol":      1e-5,
		"solver":   SolverGD,
	})
	if err != nil {
		t.Fatalf("Failed to set params: %v", err)
	}
	if lr.C != 2.0 || lr.maxIter != 200 || lr.tol != 1e-5 || lr.solver != SolverGD {
		t.Errorf("params not updated: %v", lr.GetParams())
	}

	if err := lr.SetParams(map[string]interface{}{"penalty": "l1"}); err == nil {
		t.Error("Expected error for unknown parameter")
	}
	if err := lr.SetParams(map[string]interface{}{"C": "big"}); err == nil {
		t.Error("Expected error for wrong parameter type")
	}
}

func TestLogisticRegression_InvalidInput(t *testing.T) {
	X, y := separableBinary()

	tests := []struct {
		name string
		lr   *LogisticRegression
		X    mat.Matrix
		y    []int
	}{
		{"single class", NewLogisticRegression(), X, []int{1, 1, 1, 1, 1, 1}},
		{"label count", NewLogisticRegression(), X, y[:2]},
		{"negative C", NewLogisticRegression(WithLRC(-1)), X, y},
		{"unknown solver", NewLogisticRegression(WithLRSolver("saga")), X, y},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.lr.Fit(tt.X, tt.y); err == nil {
				t.Error("Expected error")
			}
			if tt.lr.IsFitted() {
				t.Error("Model should not be fitted after a failed Fit")
			}
		})
	}
}

// TestLogisticRegression_NotFitted tests error when predicting without fitting
func TestLogisticRegression_NotFitted(t *testing.T) {
	lr := NewLogisticRegression()
	X := mat.NewDense(2, 2, []float64{
		1, 2,
		3, 4,
	})

	_, err := lr.Predict(X)
	var nfErr *scigoerrors.NotFittedError
	if !scigoerrors.As(err, &nfErr) {
		t.Errorf("Expected NotFittedError, got %v", err)
	}
	if _, err := lr.PredictProba(X); err == nil {
		t.Error("Expected error when predicting probabilities without fitting")
	}

	Xtrain, y := separableBinary()
	if err := lr.Fit(Xtrain, y); err != nil {
		t.Fatal(err)
	}
	var dimErr *scigoerrors.DimensionError
	if _, err := lr.Predict(mat.NewDense(1, 3, nil)); !scigoerrors.As(err, &dimErr) {
		t.Errorf("Expected DimensionError, got %v", err)
	}
}
