package datasets

import (
	scigoerrors "github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

// Split names a partition of a dataset.
type Split string

const (
	SplitTrain Split = "train"
	SplitTest  Split = "test"
)

// Valid reports whether s is a known split.
func (s Split) Valid() bool {
	return s == SplitTrain || s == SplitTest
}

// Dataset pairs a Data with its Targets. Both always have the same length.
type Dataset struct {
	name    string
	data    Data
	targets Targets
}

// NewDataset creates a Dataset. Mismatched lengths are a ValidationError.
func NewDataset(name string, data Data, targets Targets) (*Dataset, error) {
	if data.Len() != targets.Len() {
		return nil, scigoerrors.NewValidationError("targets", "must have the same length as data", targets.Len())
	}
	return &Dataset{name: name, data: data, targets: targets}, nil
}

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.name }

// Data returns the texts.
func (d *Dataset) Data() Data { return d.data }

// Targets returns the labels.
func (d *Dataset) Targets() Targets { return d.targets }

// Len returns the number of samples.
func (d *Dataset) Len() int { return d.data.Len() }
