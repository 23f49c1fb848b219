package lightgbm

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-serve/core/frame"
	"github.com/YuminosukeSato/scigo-serve/core/parallel"
	scigoErrors "github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/pkg/log"
)

// TrainingParams contains the training hyperparameters, named as in LightGBM.
type TrainingParams struct {
	NumIterations       int     `json:"num_iterations"`
	LearningRate        float64 `json:"learning_rate"`
	NumLeaves           int     `json:"num_leaves"`
	MaxDepth            int     `json:"max_depth"` // <= 0 means no limit
	MinDataInLeaf       int     `json:"min_data_in_leaf"`
	MinSumHessianInLeaf float64 `json:"min_sum_hessian_in_leaf"`
	Lambda              float64 `json:"lambda_l2"`
	MinGainToSplit      float64 `json:"min_gain_to_split"`
	Seed                int     `json:"seed"`
}

// featureParallelThreshold is the number of candidate features below which
// split search runs sequentially.
const featureParallelThreshold = 64

// SplitInfo contains information about a potential split
type SplitInfo struct {
	Feature    int
	Threshold  float64
	Gain       float64
	LeftCount  int
	RightCount int
	LeftGrad   float64
	RightGrad  float64
	LeftHess   float64
	RightHess  float64
	Valid      bool
}

// better reports whether s should replace best. Ties keep best, so the
// earliest candidate in scan order wins.
func (s SplitInfo) better(best SplitInfo) bool {
	return s.Valid && (!best.Valid || s.Gain > best.Gain)
}

// Trainer implements leaf-wise gradient boosting with exact, sparse-aware split search.
type Trainer struct {
	params    TrainingParams
	objective ObjectiveFunction

	nSamples  int
	nFeatures int
	rowIdx    [][]int // non-zero feature indices per row, ascending
	rowVal    [][]float64
	y         []float64

	gradients []float64
	hessians  []float64
	scores    []float64
	initScore float64

	trees  []Tree
	logger log.Logger
}

// NewTrainer creates a new trainer. Zero-valued parameters take LightGBM's defaults.
func NewTrainer(params TrainingParams) *Trainer {
	if params.NumIterations == 0 {
		params.NumIterations = 100
	}
	if params.LearningRate == 0 {
		params.LearningRate = 0.1
	}
	if params.NumLeaves == 0 {
		params.NumLeaves = 31
	}
	if params.MinDataInLeaf == 0 {
		params.MinDataInLeaf = 20
	}
	if params.MinSumHessianInLeaf == 0 {
		params.MinSumHessianInLeaf = 1e-3
	}
	return &Trainer{
		params:    params,
		objective: NewBinaryLoglossObjective(),
		logger:    log.GetLoggerWithName("lightgbm"),
	}
}

func (t *Trainer) validate() error {
	p := t.params
	switch {
	case p.NumIterations < 0:
		return scigoErrors.NewValidationError("n_estimators", "must be positive", p.NumIterations)
	case p.LearningRate <= 0:
		return scigoErrors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case p.NumLeaves < 2:
		return scigoErrors.NewValidationError("num_leaves", "must be at least 2", p.NumLeaves)
	case p.MinDataInLeaf < 1:
		return scigoErrors.NewValidationError("min_child_samples", "must be positive", p.MinDataInLeaf)
	case p.Lambda < 0:
		return scigoErrors.NewValidationError("reg_lambda", "must be non-negative", p.Lambda)
	}
	return nil
}

// Fit trains the ensemble on X and 0/1 targets y.
func (t *Trainer) Fit(X mat.Matrix, y []float64) error {
	if err := t.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return scigoErrors.NewModelError("Trainer.Fit", "empty data", scigoErrors.ErrEmptyData)
	}
	if len(y) != rows {
		return scigoErrors.NewDimensionError("Trainer.Fit", rows, len(y), 0)
	}
	start := time.Now()

	t.initialize(X, y)

	for iter := 0; iter < t.params.NumIterations; iter++ {
		t.calculateGradients()
		tree := t.buildTree()
		if tree.NumLeaves == 1 && len(t.trees) > 0 {
			t.logger.Debug("Stopped training because there are no more leaves that meet the split requirements",
				log.IterationKey, iter)
			break
		}
		t.trees = append(t.trees, tree)
	}
	if len(t.trees) > 0 {
		t.trees[0].addBias(t.initScore)
	}

	t.logger.Debug("Boosting finished",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.IterationKey, len(t.trees),
		log.LossKey, t.calculateLoss(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (t *Trainer) initialize(X mat.Matrix, y []float64) {
	t.nSamples, t.nFeatures = X.Dims()
	t.y = y
	t.rowIdx = make([][]int, t.nSamples)
	t.rowVal = make([][]float64, t.nSamples)
	for i := 0; i < t.nSamples; i++ {
		frame.DoRowNonZero(X, i, func(j int, v float64) {
			// NaN follows zero, as with missing type "none"
			if v == 0 || math.IsNaN(v) {
				return
			}
			t.rowIdx[i] = append(t.rowIdx[i], j)
			t.rowVal[i] = append(t.rowVal[i], v)
		})
	}

	t.gradients = make([]float64, t.nSamples)
	t.hessians = make([]float64, t.nSamples)
	t.initScore = t.objective.GetInitScore(y)
	t.scores = make([]float64, t.nSamples)
	for i := range t.scores {
		t.scores[i] = t.initScore
	}
	t.trees = nil
}

func (t *Trainer) calculateGradients() {
	for i, s := range t.scores {
		t.gradients[i] = t.objective.CalculateGradient(s, t.y[i])
		t.hessians[i] = t.objective.CalculateHessian(s, t.y[i])
	}
}

// leafState is a leaf of the tree under construction.
type leafState struct {
	rows    []int
	sumGrad float64
	sumHess float64
	depth   int
	parent  int // internal node pointing at this leaf, -1 for the root
	isLeft  bool
	best    SplitInfo
}

// buildTree grows one tree leaf-wise: the leaf with the largest gain is split
// until NumLeaves is reached or no leaf can be split.
func (t *Trainer) buildTree() Tree {
	root := &leafState{rows: make([]int, t.nSamples), parent: -1}
	for i := range root.rows {
		root.rows[i] = i
		root.sumGrad += t.gradients[i]
		root.sumHess += t.hessians[i]
	}
	root.best = t.findBestSplit(root)
	leaves := []*leafState{root}

	tree := Tree{Shrinkage: t.params.LearningRate}
	for len(leaves) < t.params.NumLeaves {
		bestLeaf := -1
		for i, l := range leaves {
			if l.best.Valid && (bestLeaf < 0 || l.best.Gain > leaves[bestLeaf].best.Gain) {
				bestLeaf = i
			}
		}
		if bestLeaf < 0 {
			break
		}

		l := leaves[bestLeaf]
		s := l.best
		node := len(tree.SplitFeature)
		tree.SplitFeature = append(tree.SplitFeature, s.Feature)
		tree.SplitGain = append(tree.SplitGain, s.Gain)
		tree.Threshold = append(tree.Threshold, s.Threshold)
		tree.LeftChild = append(tree.LeftChild, ^bestLeaf)
		tree.RightChild = append(tree.RightChild, ^len(leaves))
		tree.InternalValue = append(tree.InternalValue, t.leafOutput(l.sumGrad, l.sumHess))
		tree.InternalWeight = append(tree.InternalWeight, l.sumHess)
		tree.InternalCount = append(tree.InternalCount, len(l.rows))
		if l.parent >= 0 {
			if l.isLeft {
				tree.LeftChild[l.parent] = node
			} else {
				tree.RightChild[l.parent] = node
			}
		}

		leftRows, rightRows := t.splitData(l.rows, s)
		left := &leafState{rows: leftRows, sumGrad: s.LeftGrad, sumHess: s.LeftHess, depth: l.depth + 1, parent: node, isLeft: true}
		right := &leafState{rows: rightRows, sumGrad: s.RightGrad, sumHess: s.RightHess, depth: l.depth + 1, parent: node}
		left.best = t.findBestSplit(left)
		right.best = t.findBestSplit(right)
		leaves[bestLeaf] = left
		leaves = append(leaves, right)
	}

	tree.NumLeaves = len(leaves)
	tree.LeafValue = make([]float64, len(leaves))
	tree.LeafWeight = make([]float64, len(leaves))
	tree.LeafCount = make([]int, len(leaves))
	for i, l := range leaves {
		out := t.leafOutput(l.sumGrad, l.sumHess)
		tree.LeafValue[i] = out
		tree.LeafWeight[i] = l.sumHess
		tree.LeafCount[i] = len(l.rows)
		for _, r := range l.rows {
			t.scores[r] += out
		}
	}
	return tree
}

// leafOutput is the shrunk Newton step -G / (H + lambda).
func (t *Trainer) leafOutput(sumGrad, sumHess float64) float64 {
	denom := sumHess + t.params.Lambda
	if denom <= 0 {
		return 0
	}
	return -sumGrad / denom * t.params.LearningRate
}

type featureEntry struct {
	value float64
	grad  float64
	hess  float64
}

// findBestSplit searches every feature that has a non-zero value in the leaf.
// Features are searched in parallel; the reduction runs in ascending feature
// order, so the lowest feature index wins ties.
func (t *Trainer) findBestSplit(l *leafState) SplitInfo {
	if len(l.rows) < 2*t.params.MinDataInLeaf {
		return SplitInfo{}
	}
	if t.params.MaxDepth > 0 && l.depth >= t.params.MaxDepth {
		return SplitInfo{}
	}

	byFeature := make(map[int][]featureEntry)
	for _, r := range l.rows {
		g, h := t.gradients[r], t.hessians[r]
		for k, j := range t.rowIdx[r] {
			byFeature[j] = append(byFeature[j], featureEntry{value: t.rowVal[r][k], grad: g, hess: h})
		}
	}
	features := make([]int, 0, len(byFeature))
	for j := range byFeature {
		features = append(features, j)
	}
	sort.Ints(features)

	results := make([]SplitInfo, len(features))
	parallel.ParallelizeWithThreshold(len(features), featureParallelThreshold, func(start, end int) {
		for k := start; k < end; k++ {
			results[k] = t.findBestSplitForFeature(l, features[k], byFeature[features[k]])
		}
	})

	var best SplitInfo
	for _, s := range results {
		if s.better(best) {
			best = s
		}
	}
	return best
}

type valueGroup struct {
	value float64
	grad  float64
	hess  float64
	count int
}

// findBestSplitForFeature scans the distinct values of one feature in
// ascending order. Rows of the leaf without a stored value form an implicit
// group at zero.
func (t *Trainer) findBestSplitForFeature(l *leafState, feature int, entries []featureEntry) SplitInfo {
	sort.Slice(entries, func(a, b int) bool { return entries[a].value < entries[b].value })

	zero := valueGroup{grad: l.sumGrad, hess: l.sumHess, count: len(l.rows) - len(entries)}
	groups := make([]valueGroup, 0, len(entries)+1)
	zeroPlaced := zero.count == 0
	for _, e := range entries {
		zero.grad -= e.grad
		zero.hess -= e.hess
	}
	for _, e := range entries {
		if !zeroPlaced && e.value > 0 {
			groups = append(groups, zero)
			zeroPlaced = true
		}
		if n := len(groups); n > 0 && groups[n-1].value == e.value {
			groups[n-1].grad += e.grad
			groups[n-1].hess += e.hess
			groups[n-1].count++
			continue
		}
		groups = append(groups, valueGroup{value: e.value, grad: e.grad, hess: e.hess, count: 1})
	}
	if !zeroPlaced {
		groups = append(groups, zero)
	}

	p := t.params
	parentScore := l.sumGrad * l.sumGrad / (l.sumHess + p.Lambda)
	var best SplitInfo
	var leftGrad, leftHess float64
	leftCount := 0
	for k := 0; k < len(groups)-1; k++ {
		leftGrad += groups[k].grad
		leftHess += groups[k].hess
		leftCount += groups[k].count

		rightCount := len(l.rows) - leftCount
		if leftCount < p.MinDataInLeaf {
			continue
		}
		if rightCount < p.MinDataInLeaf {
			break
		}
		rightGrad := l.sumGrad - leftGrad
		rightHess := l.sumHess - leftHess
		if leftHess < p.MinSumHessianInLeaf || rightHess < p.MinSumHessianInLeaf {
			continue
		}

		gain := t.calculateSplitGain(leftGrad, leftHess, rightGrad, rightHess, parentScore)
		if gain <= p.MinGainToSplit {
			continue
		}
		cand := SplitInfo{
			Feature:    feature,
			Threshold:  midpoint(groups[k].value, groups[k+1].value),
			Gain:       gain,
			LeftCount:  leftCount,
			RightCount: rightCount,
			LeftGrad:   leftGrad,
			RightGrad:  rightGrad,
			LeftHess:   leftHess,
			RightHess:  rightHess,
			Valid:      true,
		}
		if cand.better(best) {
			best = cand
		}
	}
	return best
}

// calculateSplitGain returns ½(GL²/(HL+λ) + GR²/(HR+λ) − G²/(H+λ)).
func (t *Trainer) calculateSplitGain(leftGrad, leftHess, rightGrad, rightHess, parentScore float64) float64 {
	lambda := t.params.Lambda
	left := leftGrad * leftGrad / (leftHess + lambda)
	right := rightGrad * rightGrad / (rightHess + lambda)
	return 0.5 * (left + right - parentScore)
}

// midpoint returns a threshold t with lo <= t < hi.
func midpoint(lo, hi float64) float64 {
	m := lo + (hi-lo)/2
	if m >= hi {
		return lo
	}
	return m
}

// value returns the feature value of a training row.
func (t *Trainer) value(row, feature int) float64 {
	idx := t.rowIdx[row]
	k := sort.SearchInts(idx, feature)
	if k < len(idx) && idx[k] == feature {
		return t.rowVal[row][k]
	}
	return 0
}

func (t *Trainer) splitData(rows []int, split SplitInfo) ([]int, []int) {
	left := make([]int, 0, split.LeftCount)
	right := make([]int, 0, split.RightCount)
	for _, r := range rows {
		if t.value(r, split.Feature) <= split.Threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}

func (t *Trainer) calculateLoss() float64 {
	if t.nSamples == 0 {
		return 0
	}
	var loss float64
	for i, s := range t.scores {
		loss += t.objective.CalculateLoss(s, t.y[i])
	}
	return loss / float64(t.nSamples)
}

// GetModel returns the trained ensemble.
func (t *Trainer) GetModel() *Model {
	m := NewModel()
	m.NumFeatures = t.nFeatures
	m.Trees = t.trees
	p := t.params
	m.Parameters = map[string]string{
		"boosting":                "gbdt",
		"objective":               string(BinaryLogistic),
		"num_iterations":          formatInt(p.NumIterations),
		"learning_rate":           formatFloat(p.LearningRate),
		"num_leaves":              formatInt(p.NumLeaves),
		"max_depth":               formatInt(p.MaxDepth),
		"min_data_in_leaf":        formatInt(p.MinDataInLeaf),
		"min_sum_hessian_in_leaf": formatFloat(p.MinSumHessianInLeaf),
		"lambda_l2":               formatFloat(p.Lambda),
		"min_gain_to_split":       formatFloat(p.MinGainToSplit),
		"seed":                    formatInt(p.Seed),
	}
	return m
}
