package grouping

import (
	"math"

	"gonum.org/v1/gonum/mat"

	apperrors "npastat/internal/errors"
)

// DifferenceMatrix records which pairs of categories are significantly
// different. The diagonal is ignored.
type DifferenceMatrix struct {
	n     int
	cells [][]bool
}

// Pair is an unordered pair of category indices with I < J
type Pair struct {
	I int
	J int
}

// NewDifferenceMatrix validates cells against the stated category count and
// returns a private copy of it.
func NewDifferenceMatrix(n int, cells [][]bool) (*DifferenceMatrix, error) {
	if n < 1 {
		return nil, apperrors.NewInvalidInputError("category count must be at least 1, got %d", n)
	}
	if len(cells) != n {
		return nil, apperrors.NewInvalidInputError("difference matrix has %d rows, want %d", len(cells), n)
	}

	copied := make([][]bool, n)
	for i, row := range cells {
		if len(row) != n {
			return nil, apperrors.NewInvalidInputError("difference matrix row %d has %d columns, want %d", i, len(row), n)
		}
		copied[i] = append([]bool(nil), row...)
	}

	return &DifferenceMatrix{n: n, cells: copied}, nil
}

// DifferenceMatrixFromPValues thresholds a square matrix of pairwise
// p-values: categories i and j are different when p(i, j) < alpha.
func DifferenceMatrixFromPValues(p mat.Matrix, alpha float64) (*DifferenceMatrix, error) {
	if p == nil {
		return nil, apperrors.NewInvalidInputError("p-value matrix is nil")
	}
	if !(alpha > 0 && alpha < 1) {
		return nil, apperrors.NewInvalidInputError("alpha must be in (0, 1), got %v", alpha)
	}

	r, c := p.Dims()
	if r != c {
		return nil, apperrors.NewInvalidInputError("p-value matrix is %dx%d, want square", r, c)
	}

	cells := make([][]bool, r)
	for i := range cells {
		cells[i] = make([]bool, c)
		for j := 0; j < c; j++ {
			if i == j {
				continue
			}
			v := p.At(i, j)
			if math.IsNaN(v) {
				return nil, apperrors.NewInvalidInputError("p-value (%d, %d) is NaN", i, j)
			}
			cells[i][j] = v < alpha
		}
	}

	return NewDifferenceMatrix(r, cells)
}

// Size returns the number of categories
func (d *DifferenceMatrix) Size() int {
	return d.n
}

// Different reports whether categories i and j are significantly different.
// Either direction of the matrix counts.
func (d *DifferenceMatrix) Different(i, j int) bool {
	if i == j {
		return false
	}
	return d.cells[i][j] || d.cells[j][i]
}

// Pairs returns every significant pair in ascending (I, J) order
func (d *DifferenceMatrix) Pairs() []Pair {
	var pairs []Pair
	for i := 0; i < d.n; i++ {
		for j := i + 1; j < d.n; j++ {
			if d.Different(i, j) {
				pairs = append(pairs, Pair{I: i, J: j})
			}
		}
	}
	return pairs
}
