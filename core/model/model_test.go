package model

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scigoerrors "github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	err := s.RequireFitted("TfidfVectorizer", "Transform")
	var nf *scigoerrors.NotFittedError
	require.True(t, scigoerrors.As(err, &nf))
	assert.Equal(t, "Transform", nf.Method)

	s.SetDimensions(10, 4)
	s.SetFitted()
	require.NoError(t, s.RequireFitted("TfidfVectorizer", "Transform"))

	state := s.GetState()
	assert.Equal(t, ModelState{Fitted: true, NFeatures: 10, NSamples: 4}, state)

	restored := NewStateManager()
	restored.SetState(state)
	nFeatures, nSamples := restored.GetDimensions()
	assert.Equal(t, 10, nFeatures)
	assert.Equal(t, 4, nSamples)

	s.Reset()
	assert.False(t, s.IsFitted())
}

func TestModelWeights_RoundTrip(t *testing.T) {
	mw := &ModelWeights{
		ModelType:       "LogisticRegression",
		Version:         WeightsVersion,
		Coefficients:    []float64{0.5, -1.25, 3},
		Intercepts:      []float64{0.1},
		NRows:           1,
		NFeatures:       3,
		Classes:         []int{0, 1},
		Hyperparameters: map[string]interface{}{"C": 1.0},
		IsFitted:        true,
	}

	var buf bytes.Buffer
	_, err := mw.WriteTo(&buf)
	require.NoError(t, err)

	got, err := ReadWeights(&buf)
	require.NoError(t, err)
	assert.Equal(t, mw.Coefficients, got.Coefficients)
	assert.Equal(t, mw.Classes, got.Classes)
	assert.Equal(t, []float64{0.5, -1.25, 3}, got.Row(0))

	clone := mw.Clone()
	clone.Coefficients[0] = 99
	assert.Equal(t, 0.5, mw.Coefficients[0])
}

func TestModelWeights_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mw      ModelWeights
		wantErr bool
	}{
		{"missing type", ModelWeights{Version: WeightsVersion}, true},
		{"wrong version", ModelWeights{ModelType: "LR", Version: "0"}, true},
		{"unfitted", ModelWeights{ModelType: "LR", Version: WeightsVersion}, false},
		{"fitted without coefficients", ModelWeights{ModelType: "LR", Version: WeightsVersion, IsFitted: true}, true},
		{"shape mismatch", ModelWeights{ModelType: "LR", Version: WeightsVersion, IsFitted: true,
			Coefficients: []float64{1, 2}, Intercepts: []float64{0}, NRows: 1, NFeatures: 3}, true},
		{"intercept mismatch", ModelWeights{ModelType: "LR", Version: WeightsVersion, IsFitted: true,
			Coefficients: []float64{1, 2}, NRows: 1, NFeatures: 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.mw.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGobHelpers(t *testing.T) {
	type snapshot struct {
		Vocabulary map[string]int
		IDF        []float64
	}
	in := snapshot{Vocabulary: map[string]int{"good": 0, "bad": 1}, IDF: []float64{1.5, 1.9}}

	data, err := MarshalGob(in)
	require.NoError(t, err)

	var out snapshot
	require.NoError(t, UnmarshalGob(data, &out))
	assert.Equal(t, in, out)

	assert.Error(t, UnmarshalGob([]byte("garbage"), &out))
}
