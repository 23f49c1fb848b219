package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "scigo: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "scigo: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 3, 1)

	want := "scigo: Predict: dimension mismatch on axis 1 (features). Expected 10, got 3"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("TfidfVectorizer", "Transform")

	want := "scigo: TfidfVectorizer: this model is not fitted yet. Call Fit() before using Transform()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestServiceErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
		check   func(error) bool
	}{
		{
			name:    "unknown preprocessor",
			err:     NewUnknownNameError("preprocessor", "stem", []string{"drop", "tfidf"}),
			wantMsg: `scigo: unknown preprocessor "stem" (known: drop, tfidf)`,
			check: func(err error) bool {
				var target *ConfigError
				return As(err, &target) && target.Kind == "preprocessor"
			},
		},
		{
			name:    "invalid params",
			err:     NewConfigError("model", "lightgbm", "unknown parameter \"depth\""),
			wantMsg: `scigo: invalid model "lightgbm": unknown parameter "depth"`,
			check: func(err error) bool {
				var target *ConfigError
				return As(err, &target)
			},
		},
		{
			name:    "not found",
			err:     NewNotFoundError("artifact", "1__logistic_regression__dvach"),
			wantMsg: `scigo: artifact "1__logistic_regression__dvach" not found`,
			check: func(err error) bool {
				var target *NotFoundError
				return As(err, &target)
			},
		},
		{
			name:    "conflict",
			err:     NewConflictError("artifact", "2__lightgbm__dvach"),
			wantMsg: `scigo: artifact "2__lightgbm__dvach" already exists`,
			check: func(err error) bool {
				var target *ConflictError
				return As(err, &target)
			},
		},
		{
			name:    "state",
			err:     NewStateError("Trainer.Predict", "no data and no test dataset"),
			wantMsg: "scigo: Trainer.Predict: no data and no test dataset",
			check: func(err error) bool {
				var target *StateError
				return As(err, &target)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.wantMsg)
			}
			if !tt.check(tt.err) {
				t.Errorf("type check failed for %T", tt.err)
			}
			// ラップ後も型判定が可能であること
			if !tt.check(Wrap(tt.err, "context")) {
				t.Errorf("type check failed after Wrap for %T", tt.err)
			}
		})
	}
}

func TestWarn(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(func(w error) {})

	Warn(NewConvergenceWarning("lbfgs", 100, ""))
	Warn(NewUndefinedMetricWarning("precision", "no predicted samples", 0))

	if len(got) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(got))
	}
	if !strings.Contains(got[0].Error(), "lbfgs failed to converge after 100 iterations") {
		t.Errorf("unexpected warning message: %s", got[0].Error())
	}
	if !strings.Contains(got[1].Error(), "'precision' is ill-defined") {
		t.Errorf("unexpected warning message: %s", got[1].Error())
	}
}

func TestZerologWarnFuncTakesPrecedence(t *testing.T) {
	var handler, zl int
	SetWarningHandler(func(w error) { handler++ })
	SetZerologWarnFunc(func(w error) { zl++ })
	defer SetWarningHandler(func(w error) {})

	Warn(NewConvergenceWarning("gd", 10, "slow"))

	if handler != 0 || zl != 1 {
		t.Errorf("handler=%d zerolog=%d, want 0 and 1", handler, zl)
	}
}
