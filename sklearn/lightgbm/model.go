package lightgbm

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-serve/core/frame"
	"github.com/YuminosukeSato/scigo-serve/core/parallel"
	scigoErrors "github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

// Tree is a single regression tree in LightGBM's array layout.
//
// Internal node k splits on SplitFeature[k]: rows with value <= Threshold[k]
// go to LeftChild[k], the others to RightChild[k]. A child c >= 0 is another
// internal node; c < 0 is the leaf ^c. A tree with one leaf has no internal nodes.
// Leaf values already include the shrinkage (learning rate).
type Tree struct {
	NumLeaves int

	// Internal nodes
	SplitFeature   []int
	SplitGain      []float64
	Threshold      []float64
	LeftChild      []int
	RightChild     []int
	InternalValue  []float64
	InternalWeight []float64
	InternalCount  []int

	// Leaves
	LeafValue  []float64
	LeafWeight []float64
	LeafCount  []int

	Shrinkage float64
}

// NumNodes returns the number of internal nodes.
func (t *Tree) NumNodes() int { return len(t.SplitFeature) }

// leafIndex returns the leaf reached by a dense feature row.
func (t *Tree) leafIndex(features []float64) int {
	if t.NumLeaves <= 1 {
		return 0
	}
	node := 0
	for node >= 0 {
		v := features[t.SplitFeature[node]]
		// missing type "none": NaN is treated as zero
		if math.IsNaN(v) {
			v = 0
		}
		if v <= t.Threshold[node] {
			node = t.LeftChild[node]
		} else {
			node = t.RightChild[node]
		}
	}
	return ^node
}

// Predict returns the tree output for a dense feature row.
func (t *Tree) Predict(features []float64) float64 {
	return t.LeafValue[t.leafIndex(features)]
}

// addBias adds a constant to every output of the tree.
func (t *Tree) addBias(b float64) {
	for i := range t.LeafValue {
		t.LeafValue[i] += b
	}
	for i := range t.InternalValue {
		t.InternalValue[i] += b
	}
}

// ObjectiveType represents the objective function type
type ObjectiveType string

const (
	// BinaryLogistic is binary log loss with a sigmoid link.
	BinaryLogistic ObjectiveType = "binary"
)

// Model is a fitted boosted ensemble for binary classification. The raw score
// of a row is the sum of all tree outputs; the initial score is folded into
// the first tree as LightGBM does with boost_from_average.
type Model struct {
	Objective    ObjectiveType
	NumFeatures  int
	FeatureNames []string
	Trees        []Tree

	// Classes maps the binary output back to the original labels.
	Classes []int

	// Parameters are the training parameters written to the model file.
	Parameters map[string]string
}

// NewModel creates a new empty model
func NewModel() *Model {
	return &Model{
		Objective:  BinaryLogistic,
		Parameters: make(map[string]string),
	}
}

// predictThreshold is the number of rows below which prediction runs sequentially.
const predictThreshold = 1024

// PredictRaw returns the raw (logit) score of every row of X.
func (m *Model) PredictRaw(X mat.Matrix) ([]float64, error) {
	rows, cols := X.Dims()
	if cols != m.NumFeatures {
		return nil, scigoErrors.NewDimensionError("Model.PredictRaw", m.NumFeatures, cols, 1)
	}
	out := make([]float64, rows)
	parallel.ParallelizeWithThreshold(rows, predictThreshold, func(start, end int) {
		buf := make([]float64, cols)
		var touched []int
		for i := start; i < end; i++ {
			touched = touched[:0]
			frame.DoRowNonZero(X, i, func(j int, v float64) {
				buf[j] = v
				touched = append(touched, j)
			})
			var score float64
			for k := range m.Trees {
				score += m.Trees[k].Predict(buf)
			}
			out[i] = score
			for _, j := range touched {
				buf[j] = 0
			}
		}
	})
	return out, nil
}

// PredictProba returns the probability of the positive class for every row.
func (m *Model) PredictProba(X mat.Matrix) ([]float64, error) {
	raw, err := m.PredictRaw(X)
	if err != nil {
		return nil, err
	}
	for i, s := range raw {
		raw[i] = sigmoid(s)
	}
	return raw, nil
}

// GetFeatureImportance returns per-feature importance scores.
// importanceType is "split" (number of splits) or "gain" (total split gain).
func (m *Model) GetFeatureImportance(importanceType string) []float64 {
	importance := make([]float64, m.NumFeatures)
	for _, tree := range m.Trees {
		for k, f := range tree.SplitFeature {
			switch importanceType {
			case "gain":
				importance[f] += tree.SplitGain[k]
			default:
				importance[f]++
			}
		}
	}
	return importance
}

// featureNames returns FeatureNames or LightGBM's default Column_i names.
func (m *Model) featureNames() []string {
	if len(m.FeatureNames) == m.NumFeatures {
		return m.FeatureNames
	}
	names := make([]string, m.NumFeatures)
	for i := range names {
		names[i] = "Column_" + strconv.Itoa(i)
	}
	return names
}

func (m *Model) sortedParameterKeys() []string {
	keys := make([]string, 0, len(m.Parameters))
	for k := range m.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1.0 / (1.0 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1.0 + e)
}
