// Package datasets defines the immutable text/label containers consumed by models
// and the loaders that read named datasets from disk.
package datasets

import (
	"iter"

	"github.com/YuminosukeSato/scigo-serve/core/frame"
)

// Column names of the tabular views.
const (
	TextColumn   = "text"
	TargetColumn = "target"
)

// Data is an ordered, read-only sequence of texts.
// The constructor copies its input once; reads never copy.
type Data struct {
	texts []string
}

// NewData creates Data from texts.
func NewData(texts []string) Data {
	return Data{texts: append([]string(nil), texts...)}
}

// Len returns the number of texts.
func (d Data) Len() int { return len(d.texts) }

// At returns the i-th text.
func (d Data) At(i int) string { return d.texts[i] }

// All iterates over (index, text) pairs.
func (d Data) All() iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		for i, s := range d.texts {
			if !yield(i, s) {
				return
			}
		}
	}
}

// Strings returns a copy of the texts.
func (d Data) Strings() []string {
	return append([]string(nil), d.texts...)
}

// Table returns a single-column table view with column "text".
func (d Data) Table() *frame.Table {
	return frame.MustNew(frame.TextColumn(TextColumn, d.texts))
}

// Targets is an ordered, read-only sequence of integer labels aligned with a Data.
type Targets struct {
	labels []int
}

// NewTargets creates Targets from labels.
func NewTargets(labels []int) Targets {
	return Targets{labels: append([]int(nil), labels...)}
}

// Len returns the number of labels.
func (t Targets) Len() int { return len(t.labels) }

// At returns the i-th label.
func (t Targets) At(i int) int { return t.labels[i] }

// All iterates over (index, label) pairs.
func (t Targets) All() iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		for i, v := range t.labels {
			if !yield(i, v) {
				return
			}
		}
	}
}

// Ints returns a copy of the labels.
func (t Targets) Ints() []int {
	return append([]int(nil), t.labels...)
}

// Table returns a single-column table view with column "target".
func (t Targets) Table() *frame.Table {
	values := make([]float64, len(t.labels))
	for i, v := range t.labels {
		values[i] = float64(v)
	}
	return frame.MustNew(frame.DenseColumn(TargetColumn, values))
}
