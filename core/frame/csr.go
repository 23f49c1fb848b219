package frame

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	scigoerrors "github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

// CSR is a read-only compressed sparse row matrix. It implements mat.Matrix,
// so it can be passed wherever the estimators accept gonum input, and
// mat.RowNonZeroDoer, which the estimators use to skip implicit zeros.
type CSR struct {
	rows, cols int
	indptr     []int
	indices    []int
	data       []float64
}

var (
	_ mat.Matrix         = (*CSR)(nil)
	_ mat.RowNonZeroDoer = (*CSR)(nil)
	_ mat.NonZeroDoer    = (*CSR)(nil)
)

// NewCSR validates and wraps CSR arrays. The slices are owned by the matrix afterwards.
func NewCSR(rows, cols int, indptr, indices []int, data []float64) (*CSR, error) {
	if len(indptr) != rows+1 {
		return nil, scigoerrors.NewDimensionError("NewCSR", rows+1, len(indptr), 0)
	}
	if len(indices) != len(data) || indptr[rows] != len(data) {
		return nil, scigoerrors.NewValueError("NewCSR", "indices, data and indptr disagree on the number of non-zeros")
	}
	for i := 0; i < rows; i++ {
		if indptr[i] > indptr[i+1] {
			return nil, scigoerrors.NewValueError("NewCSR", "indptr must be non-decreasing")
		}
		for k := indptr[i]; k < indptr[i+1]; k++ {
			if indices[k] < 0 || indices[k] >= cols {
				return nil, scigoerrors.NewValueError("NewCSR", "column index out of range")
			}
			if k > indptr[i] && indices[k] <= indices[k-1] {
				return nil, scigoerrors.NewValueError("NewCSR", "column indices must be strictly increasing within a row")
			}
		}
	}
	return &CSR{rows: rows, cols: cols, indptr: indptr, indices: indices, data: data}, nil
}

// CSRFromDense converts any matrix into CSR form.
func CSRFromDense(m mat.Matrix) *CSR {
	r, c := m.Dims()
	indptr := make([]int, r+1)
	var indices []int
	var data []float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); v != 0 {
				indices = append(indices, j)
				data = append(data, v)
			}
		}
		indptr[i+1] = len(data)
	}
	return &CSR{rows: r, cols: c, indptr: indptr, indices: indices, data: data}
}

// Dims implements mat.Matrix.
func (m *CSR) Dims() (r, c int) { return m.rows, m.cols }

// At implements mat.Matrix.
func (m *CSR) At(i, j int) float64 {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	lo, hi := m.indptr[i], m.indptr[i+1]
	k := lo + sort.SearchInts(m.indices[lo:hi], j)
	if k < hi && m.indices[k] == j {
		return m.data[k]
	}
	return 0
}

// T implements mat.Matrix.
func (m *CSR) T() mat.Matrix { return mat.Transpose{Matrix: m} }

// NNZ returns the number of stored values.
func (m *CSR) NNZ() int { return len(m.data) }

// DoRowNonZero implements mat.RowNonZeroDoer.
func (m *CSR) DoRowNonZero(i int, fn func(i, j int, v float64)) {
	for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
		fn(i, m.indices[k], m.data[k])
	}
}

// DoNonZero implements mat.NonZeroDoer.
func (m *CSR) DoNonZero(fn func(i, j int, v float64)) {
	for i := 0; i < m.rows; i++ {
		m.DoRowNonZero(i, fn)
	}
}

// RowDot returns the dot product of row i with w, which must have length cols.
func (m *CSR) RowDot(i int, w []float64) float64 {
	var s float64
	for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
		s += m.data[k] * w[m.indices[k]]
	}
	return s
}

// ToDense materialises the matrix.
func (m *CSR) ToDense() *mat.Dense {
	d := mat.NewDense(m.rows, m.cols, nil)
	m.DoNonZero(d.Set)
	return d
}

// DoRowNonZero iterates the non-zero values of row i of any matrix, using the
// sparse fast path when m implements mat.RowNonZeroDoer.
func DoRowNonZero(m mat.Matrix, i int, fn func(j int, v float64)) {
	if nz, ok := m.(mat.RowNonZeroDoer); ok {
		nz.DoRowNonZero(i, func(_, j int, v float64) { fn(j, v) })
		return
	}
	_, c := m.Dims()
	for j := 0; j < c; j++ {
		if v := m.At(i, j); v != 0 {
			fn(j, v)
		}
	}
}

// Columns returns the matrix in column-major sparse form: for each column the
// rows and values of its non-zeros, rows ascending.
func Columns(m mat.Matrix) (rows [][]int, vals [][]float64) {
	r, c := m.Dims()
	rows = make([][]int, c)
	vals = make([][]float64, c)
	for i := 0; i < r; i++ {
		DoRowNonZero(m, i, func(j int, v float64) {
			rows[j] = append(rows[j], i)
			vals[j] = append(vals[j], v)
		})
	}
	return rows, vals
}
