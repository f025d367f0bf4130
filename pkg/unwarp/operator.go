package unwarp

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Operator is the square sparse unwarp matrix, stored row-compressed.
// It is immutable once built and safe for concurrent use.
//
// Rows and columns index a (phase, read, slice) brick flattened
// phase-fastest. Operator satisfies mat.Matrix.
type Operator struct {
	nRead, nPhase, nSlice int

	expansion float64

	// padded is the number of displacement-map samples that were folded
	// into the operator: nRead*nSlice*nPhase*expansion
	padded int

	n      int
	rowPtr []int
	colIdx []int
	vals   []float64
}

var _ mat.Matrix = (*Operator)(nil)

// newOperator compresses (row, col) pairs, each worth 1, into CSR form.
// Duplicate pairs are summed, then every value is divided by expansion.
// Within a row, columns must arrive in non-decreasing order.
func newOperator(n int, rows, cols []int, expansion float64) *Operator {
	o := &Operator{n: n, expansion: expansion, padded: len(rows)}

	counts := make([]int, n+1)
	for _, r := range rows {
		counts[r+1]++
	}
	for i := 1; i <= n; i++ {
		counts[i] += counts[i-1]
	}
	next := append([]int(nil), counts[:n]...)
	raw := make([]int, len(rows))
	for k, r := range rows {
		raw[next[r]] = cols[k]
		next[r]++
	}

	o.rowPtr = make([]int, n+1)
	o.colIdx = make([]int, 0, len(rows))
	o.vals = make([]float64, 0, len(rows))
	for i := 0; i < n; i++ {
		seg := raw[counts[i]:counts[i+1]]
		if !sort.IntsAreSorted(seg) {
			sort.Ints(seg)
		}
		for j := 0; j < len(seg); {
			c := seg[j]
			run := 1
			for j+run < len(seg) && seg[j+run] == c {
				run++
			}
			o.colIdx = append(o.colIdx, c)
			o.vals = append(o.vals, float64(run)/expansion)
			j += run
		}
		o.rowPtr[i+1] = len(o.colIdx)
	}
	return o
}

// Dims returns the (square) matrix dimensions
func (o *Operator) Dims() (r, c int) {
	return o.n, o.n
}

// At returns the element at row i, column j
func (o *Operator) At(i, j int) float64 {
	if i < 0 || i >= o.n || j < 0 || j >= o.n {
		panic(mat.ErrIndexOutOfRange)
	}
	lo, hi := o.rowPtr[i], o.rowPtr[i+1]
	k := lo + sort.SearchInts(o.colIdx[lo:hi], j)
	if k < hi && o.colIdx[k] == j {
		return o.vals[k]
	}
	return 0
}

// T returns the transpose as an implicit view
func (o *Operator) T() mat.Matrix {
	return mat.Transpose{Matrix: o}
}

// NNZ is the number of stored (non-zero) entries
func (o *Operator) NNZ() int {
	return len(o.vals)
}

// DoNonZero calls fn for each stored entry in row-major order
func (o *Operator) DoNonZero(fn func(i, j int, v float64)) {
	for i := 0; i < o.n; i++ {
		for k := o.rowPtr[i]; k < o.rowPtr[i+1]; k++ {
			fn(i, o.colIdx[k], o.vals[k])
		}
	}
}

// Geometry is the (read, phase, slice) brick shape the operator applies to
func (o *Operator) Geometry() (read, phase, slice int) {
	return o.nRead, o.nPhase, o.nSlice
}

// PaddedSize is the displacement-map sample count read*slice*phase*expansion
func (o *Operator) PaddedSize() int {
	return o.padded
}

// Expansion is the factor the operator was built with
func (o *Operator) Expansion() float64 {
	return o.expansion
}

// MulVecTo computes dst = O * x. dst must have length n and must not
// share storage with x.
func (o *Operator) MulVecTo(dst *mat.VecDense, x mat.Vector) {
	if x.Len() != o.n || dst.Len() != o.n {
		panic(mat.ErrShape)
	}
	for i := 0; i < o.n; i++ {
		var sum float64
		for k := o.rowPtr[i]; k < o.rowPtr[i+1]; k++ {
			sum += o.vals[k] * x.AtVec(o.colIdx[k])
		}
		dst.SetVec(i, sum)
	}
}
