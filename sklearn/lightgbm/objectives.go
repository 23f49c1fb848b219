package lightgbm

import (
	"math"
)

// ObjectiveFunction defines the interface for boosting objectives.
// prediction is the raw score, target the 0/1 label.
type ObjectiveFunction interface {
	// CalculateGradient returns the first derivative of the loss w.r.t. the raw score
	CalculateGradient(prediction, target float64) float64

	// CalculateHessian returns the second derivative of the loss w.r.t. the raw score
	CalculateHessian(prediction, target float64) float64

	// CalculateLoss returns the loss of one sample
	CalculateLoss(prediction, target float64) float64

	// GetInitScore returns the constant raw score that minimises the loss
	GetInitScore(targets []float64) float64

	// Name returns the objective name as written to the model file
	Name() string
}

// probClip keeps probabilities away from 0 and 1 in the loss and init score.
const probClip = 1e-15

// BinaryLoglossObjective implements binary cross-entropy with a sigmoid link.
type BinaryLoglossObjective struct{}

// NewBinaryLoglossObjective creates the binary objective.
func NewBinaryLoglossObjective() *BinaryLoglossObjective {
	return &BinaryLoglossObjective{}
}

// CalculateGradient returns p - y.
func (o *BinaryLoglossObjective) CalculateGradient(prediction, target float64) float64 {
	return sigmoid(prediction) - target
}

// CalculateHessian returns p(1 - p).
func (o *BinaryLoglossObjective) CalculateHessian(prediction, target float64) float64 {
	p := sigmoid(prediction)
	return p * (1 - p)
}

// CalculateLoss returns -[y log p + (1-y) log(1-p)].
func (o *BinaryLoglossObjective) CalculateLoss(prediction, target float64) float64 {
	p := math.Min(math.Max(sigmoid(prediction), probClip), 1-probClip)
	return -(target*math.Log(p) + (1-target)*math.Log(1-p))
}

// GetInitScore returns log(p / (1 - p)) of the positive rate.
func (o *BinaryLoglossObjective) GetInitScore(targets []float64) float64 {
	if len(targets) == 0 {
		return 0
	}
	var sum float64
	for _, t := range targets {
		sum += t
	}
	p := math.Min(math.Max(sum/float64(len(targets)), probClip), 1-probClip)
	return math.Log(p / (1 - p))
}

// Name implements ObjectiveFunction.
func (o *BinaryLoglossObjective) Name() string { return string(BinaryLogistic) }
