package frame

import (
	"fmt"

	scigoerrors "github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

// Table is an ordered set of equally long, uniquely named columns.
//
// Tables and their columns are never modified after construction: Drop,
// Append and Replace return new tables that share unchanged columns. This is
// what lets preprocessing steps guarantee they never mutate their input.
type Table struct {
	cols  []Column
	index map[string]int
	nRows int
}

// New builds a table from columns.
func New(cols ...Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols)), nRows: -1}
	for _, c := range cols {
		if err := t.add(c); err != nil {
			return nil, err
		}
	}
	if t.nRows < 0 {
		t.nRows = 0
	}
	return t, nil
}

// MustNew is New for statically known columns. It panics on error.
func MustNew(cols ...Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) add(c Column) error {
	if c.name == "" {
		return scigoerrors.NewValidationError("column", "name must not be empty", c.name)
	}
	if _, dup := t.index[c.name]; dup {
		return scigoerrors.NewValidationError("column", "duplicate column name", c.name)
	}
	if t.nRows >= 0 && c.n != t.nRows {
		return scigoerrors.NewDimensionError(fmt.Sprintf("add column %q", c.name), t.nRows, c.n, 0)
	}
	t.nRows = c.n
	t.index[c.name] = len(t.cols)
	t.cols = append(t.cols, c)
	return nil
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.nRows }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.cols) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.name
	}
	return names
}

// Has reports whether a column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.cols[i], true
}

// ColumnAt returns the i-th column.
func (t *Table) ColumnAt(i int) Column { return t.cols[i] }

// Clone returns a new table with the same columns. Columns are immutable, so
// sharing them gives the same isolation as a deep copy.
func (t *Table) Clone() *Table {
	c := &Table{
		cols:  append([]Column(nil), t.cols...),
		index: make(map[string]int, len(t.index)),
		nRows: t.nRows,
	}
	for k, v := range t.index {
		c.index[k] = v
	}
	return c
}

// Drop returns a table without the named columns. Naming a missing column is a ValueError.
func (t *Table) Drop(names ...string) (*Table, error) {
	drop := make(map[string]struct{}, len(names))
	for _, name := range names {
		if !t.Has(name) {
			return nil, scigoerrors.NewValueError("Table.Drop", fmt.Sprintf("column %q not found", name))
		}
		drop[name] = struct{}{}
	}
	kept := make([]Column, 0, len(t.cols))
	for _, c := range t.cols {
		if _, ok := drop[c.name]; !ok {
			kept = append(kept, c)
		}
	}
	out, err := New(kept...)
	if err != nil {
		return nil, err
	}
	if len(kept) == 0 {
		out.nRows = t.nRows
	}
	return out, nil
}

// Append returns a table with cols added after the existing columns.
func (t *Table) Append(cols ...Column) (*Table, error) {
	out := t.Clone()
	if len(out.cols) == 0 {
		out.nRows = -1
	}
	for _, c := range cols {
		if err := out.add(c); err != nil {
			return nil, err
		}
	}
	if out.nRows < 0 {
		out.nRows = 0
	}
	return out, nil
}

// Replace returns a table where each column in cols takes the place of the
// existing column with the same name.
func (t *Table) Replace(cols ...Column) (*Table, error) {
	out := t.Clone()
	for _, c := range cols {
		i, ok := out.index[c.name]
		if !ok {
			return nil, scigoerrors.NewValueError("Table.Replace", fmt.Sprintf("column %q not found", c.name))
		}
		if c.n != out.nRows {
			return nil, scigoerrors.NewDimensionError(fmt.Sprintf("replace column %q", c.name), out.nRows, c.n, 0)
		}
		out.cols[i] = c
	}
	return out, nil
}

// Matrix converts every column into a CSR feature matrix, one matrix column per
// table column in order. All columns must be numeric; a remaining text column
// is a ValueError because estimators cannot consume raw text.
func (t *Table) Matrix() (*CSR, []string, error) {
	for _, c := range t.cols {
		if !c.IsNumeric() {
			return nil, nil, scigoerrors.NewValueError("Table.Matrix",
				fmt.Sprintf("column %q is %s; drop it before fitting an estimator", c.name, c.kind))
		}
	}
	if len(t.cols) == 0 {
		return nil, nil, scigoerrors.NewValueError("Table.Matrix", "table has no feature columns")
	}

	counts := make([]int, t.nRows+1)
	for _, c := range t.cols {
		c.NonZeros(func(row int, _ float64) { counts[row+1]++ })
	}
	for i := 1; i <= t.nRows; i++ {
		counts[i] += counts[i-1]
	}
	nnz := counts[t.nRows]
	indices := make([]int, nnz)
	data := make([]float64, nnz)
	next := append([]int(nil), counts[:t.nRows]...)
	// columns are visited in order, so indices within a row come out sorted
	for j, c := range t.cols {
		c.NonZeros(func(row int, v float64) {
			k := next[row]
			indices[k] = j
			data[k] = v
			next[row]++
		})
	}
	m, err := NewCSR(t.nRows, len(t.cols), counts, indices, data)
	if err != nil {
		return nil, nil, err
	}
	return m, t.Names(), nil
}
