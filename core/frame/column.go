// Package frame provides the immutable tabular container that flows through
// preprocessing pipelines, and its conversion to a gonum matrix for estimators.
package frame

import (
	"sort"

	scigoerrors "github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

// Kind is the storage kind of a column.
type Kind int

const (
	// Text holds one string per row.
	Text Kind = iota
	// Dense holds one float64 per row.
	Dense
	// Sparse holds the non-zero rows of a numeric column.
	Sparse
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Dense:
		return "dense"
	case Sparse:
		return "sparse"
	default:
		return "unknown"
	}
}

// Column is an immutable named column. The zero value is not usable; build
// columns with TextColumn, DenseColumn or SparseColumn.
type Column struct {
	name string
	kind Kind
	n    int

	text   []string
	values []float64

	// sparse: rows sorted ascending, vals aligned
	rows []int
	vals []float64
}

// TextColumn creates a text column. texts is copied.
func TextColumn(name string, texts []string) Column {
	return Column{name: name, kind: Text, n: len(texts), text: append([]string(nil), texts...)}
}

// DenseColumn creates a numeric column. values is copied.
func DenseColumn(name string, values []float64) Column {
	return Column{name: name, kind: Dense, n: len(values), values: append([]float64(nil), values...)}
}

// SparseColumn creates a numeric column of length n from its non-zero entries.
// Entries are copied and sorted by row; explicit zeros are dropped.
func SparseColumn(name string, n int, rows []int, vals []float64) (Column, error) {
	if len(rows) != len(vals) {
		return Column{}, scigoerrors.NewDimensionError("SparseColumn", len(rows), len(vals), 0)
	}
	type entry struct {
		row int
		val float64
	}
	entries := make([]entry, 0, len(rows))
	for i, r := range rows {
		if r < 0 || r >= n {
			return Column{}, scigoerrors.NewValueError("SparseColumn", "row index out of range")
		}
		if vals[i] != 0 {
			entries = append(entries, entry{r, vals[i]})
		}
	}
	sort.SliceStable(entries, func(a, b int) bool { return entries[a].row < entries[b].row })

	col := Column{name: name, kind: Sparse, n: n, rows: make([]int, 0, len(entries)), vals: make([]float64, 0, len(entries))}
	for i, e := range entries {
		if i > 0 && entries[i-1].row == e.row {
			return Column{}, scigoerrors.NewValueError("SparseColumn", "duplicate row index")
		}
		col.rows = append(col.rows, e.row)
		col.vals = append(col.vals, e.val)
	}
	return col, nil
}

// SparseColumnFromSorted builds a sparse column from entries already sorted by
// row without duplicates or zeros. The slices are owned by the column afterwards.
func SparseColumnFromSorted(name string, n int, rows []int, vals []float64) Column {
	return Column{name: name, kind: Sparse, n: n, rows: rows, vals: vals}
}

// Name returns the column name.
func (c Column) Name() string { return c.name }

// Kind returns the storage kind.
func (c Column) Kind() Kind { return c.kind }

// Len returns the number of rows.
func (c Column) Len() int { return c.n }

// IsNumeric reports whether the column can be used as an estimator feature.
func (c Column) IsNumeric() bool { return c.kind == Dense || c.kind == Sparse }

// Text returns the string at row i. It panics for non-text columns.
func (c Column) Text(i int) string {
	if c.kind != Text {
		panic("frame: Text called on " + c.kind.String() + " column " + c.name)
	}
	return c.text[i]
}

// Float returns the numeric value at row i. It panics for text columns.
func (c Column) Float(i int) float64 {
	switch c.kind {
	case Dense:
		return c.values[i]
	case Sparse:
		k := sort.SearchInts(c.rows, i)
		if k < len(c.rows) && c.rows[k] == i {
			return c.vals[k]
		}
		return 0
	default:
		panic("frame: Float called on text column " + c.name)
	}
}

// NonZeros calls fn for every non-zero value of a numeric column in row order.
func (c Column) NonZeros(fn func(row int, v float64)) {
	switch c.kind {
	case Dense:
		for i, v := range c.values {
			if v != 0 {
				fn(i, v)
			}
		}
	case Sparse:
		for k, r := range c.rows {
			fn(r, c.vals[k])
		}
	}
}

// NNZ returns the number of stored non-zero values.
func (c Column) NNZ() int {
	switch c.kind {
	case Sparse:
		return len(c.rows)
	case Dense:
		nnz := 0
		for _, v := range c.values {
			if v != 0 {
				nnz++
			}
		}
		return nnz
	default:
		return 0
	}
}

// Renamed returns the column under a new name, sharing storage.
func (c Column) Renamed(name string) Column {
	c.name = name
	return c
}
