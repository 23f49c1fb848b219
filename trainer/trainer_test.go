package trainer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/scigo-serve/datasets"
	"github.com/YuminosukeSato/scigo-serve/models"
	scigoerrors "github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/preprocessing"
)

func toyDataset(t *testing.T) *datasets.Dataset {
	t.Helper()
	ds, err := datasets.NewDataset("toy",
		datasets.NewData([]string{"good product", "terrible awful", "excellent", "worst ever"}),
		datasets.NewTargets([]int{1, 1, 0, 0}),
	)
	require.NoError(t, err)
	return ds
}

func toyModel(t *testing.T) models.Model {
	t.Helper()
	m, err := models.New(models.LogisticRegression, models.Config{
		Preprocessor: preprocessing.ComposeConfig{Preprocessors: []preprocessing.Config{
			{Name: preprocessing.TfidfName},
			{Name: preprocessing.DropName, Params: preprocessing.Params{"columns": []any{"text"}}},
		}},
		ModelConfiguration: map[string]any{"random_state": 42.0},
	})
	require.NoError(t, err)
	return m
}

func TestTrainer_EndToEnd(t *testing.T) {
	ds := toyDataset(t)
	tr := New(toyModel(t), ds, nil)

	fitted, err := tr.Fit()
	require.NoError(t, err)
	assert.Same(t, fitted, tr.Model())

	m, err := tr.Evaluate(ds)
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.Accuracy)
	for name, v := range map[string]float64{
		"accuracy": m.Accuracy, "f1": m.F1, "precision": m.Precision, "recall": m.Recall,
	} {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 1.0, name)
	}

	again, err := tr.Evaluate(ds)
	require.NoError(t, err)
	assert.Equal(t, m, again)
}

func TestTrainer_PredictWithoutData(t *testing.T) {
	tr := New(toyModel(t), toyDataset(t), nil)
	_, err := tr.Fit()
	require.NoError(t, err)

	_, err = tr.Predict(nil)
	var stateErr *scigoerrors.StateError
	assert.True(t, scigoerrors.As(err, &stateErr), "got %v", err)

	_, err = tr.Evaluate(nil)
	assert.True(t, scigoerrors.As(err, &stateErr), "got %v", err)
}

func TestTrainer_FallsBackToTestDataset(t *testing.T) {
	ds := toyDataset(t)
	tr := New(toyModel(t), ds, ds)
	_, err := tr.Fit()
	require.NoError(t, err)

	pred, err := tr.Predict(nil)
	require.NoError(t, err)
	assert.Equal(t, ds.Targets().Ints(), pred.Ints())

	m, err := tr.Evaluate(nil)
	require.NoError(t, err)
	assert.Equal(t, Metrics{Accuracy: 1, F1: 1, Precision: 1, Recall: 1}, m)

	explicit := datasets.NewData([]string{"excellent"})
	pred, err = tr.Predict(&explicit)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, pred.Ints())
}

func TestTrainer_FitWithoutTrainingData(t *testing.T) {
	_, err := New(toyModel(t), nil, nil).Fit()
	var stateErr *scigoerrors.StateError
	assert.True(t, scigoerrors.As(err, &stateErr), "got %v", err)
}

func TestComputeMetrics(t *testing.T) {
	tests := []struct {
		name      string
		truth     []int
		predicted []int
		want      Metrics
	}{
		{
			name:      "perfect",
			truth:     []int{1, 0, 1, 0},
			predicted: []int{1, 0, 1, 0},
			want:      Metrics{Accuracy: 1, F1: 1, Precision: 1, Recall: 1},
		},
		{
			name:      "one false positive",
			truth:     []int{1, 0, 0, 0},
			predicted: []int{1, 1, 0, 0},
			want:      Metrics{Accuracy: 0.75, F1: 2.0 / 3.0, Precision: 0.5, Recall: 1},
		},
		{
			name:      "no positive predictions",
			truth:     []int{1, 1, 0, 0},
			predicted: []int{0, 0, 0, 0},
			want:      Metrics{Accuracy: 0.5},
		},
	}
	scigoerrors.SetWarningHandler(func(error) {})
	defer scigoerrors.SetWarningHandler(nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeMetrics(datasets.NewTargets(tt.predicted), datasets.NewTargets(tt.truth))
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Accuracy, got.Accuracy, 1e-12)
			assert.InDelta(t, tt.want.F1, got.F1, 1e-12)
			assert.InDelta(t, tt.want.Precision, got.Precision, 1e-12)
			assert.InDelta(t, tt.want.Recall, got.Recall, 1e-12)
		})
	}

	_, err := ComputeMetrics(datasets.NewTargets([]int{1}), datasets.NewTargets([]int{1, 0}))
	var dimErr *scigoerrors.DimensionError
	assert.True(t, scigoerrors.As(err, &dimErr), "got %v", err)
}
