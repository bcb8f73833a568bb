// Package noise generates correlated standard-normal increments from a
// correlation matrix using a Gaussian copula over a truncated SVD factor.
package noise

import (
	stderrors "errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/rzzdr/economic-scenario-generator/pkg/utils/errors"
)

const (
	// DefaultTolerance is the singular-value cutoff used by LeftFactorize
	DefaultTolerance = 1e-6

	// SymmetryTolerance bounds |A[i][j] - A[j][i]| for an accepted matrix
	SymmetryTolerance = 1e-8
)

// ErrInvalidCorrelationMatrix is the cause of every rejected correlation matrix
var ErrInvalidCorrelationMatrix = stderrors.New("invalid correlation matrix")

func invalidMatrix(format string, args ...interface{}) error {
	return &errors.AppError{
		Type:    errors.ErrorTypeInvalidArgument,
		Message: fmt.Sprintf(format, args...),
		Err:     ErrInvalidCorrelationMatrix,
	}
}

// ValidateCorrelation checks that a is a non-empty, square, finite matrix
// that is symmetric within SymmetryTolerance.
func ValidateCorrelation(a mat.Matrix) error {
	if a == nil {
		return invalidMatrix("correlation matrix is missing")
	}
	r, c := a.Dims()
	if r == 0 || c == 0 {
		return invalidMatrix("correlation matrix is empty")
	}
	if r != c {
		return invalidMatrix("correlation matrix must be square, got %dx%d", r, c)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := a.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return invalidMatrix("correlation matrix entry (%d,%d) is not finite", i, j)
			}
			if j > i && math.Abs(v-a.At(j, i)) > SymmetryTolerance {
				return invalidMatrix("correlation matrix is not symmetric at (%d,%d)", i, j)
			}
		}
	}
	return nil
}

// LeftFactorize factors a symmetric matrix A into a D×K loading matrix B
// with B·Bᵀ ≈ A. K counts the singular values strictly above tol, so A may
// be singular or mildly indefinite. A matrix with no singular value above
// tol is reported as numerically degenerate.
func LeftFactorize(a mat.Matrix, tol float64) (*mat.Dense, error) {
	if err := ValidateCorrelation(a); err != nil {
		return nil, err
	}
	if tol <= 0 {
		tol = DefaultTolerance
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThinU); !ok {
		return nil, errors.NumericDegeneracy("singular value decomposition of correlation matrix did not converge")
	}

	// Values are returned in descending order.
	values := svd.Values(nil)
	rank := 0
	for _, v := range values {
		if v > tol {
			rank++
		}
	}
	if rank == 0 {
		return nil, errors.NumericDegeneracy(fmt.Sprintf("correlation matrix has no singular value above %g", tol))
	}

	var u mat.Dense
	svd.UTo(&u)

	d, _ := a.Dims()
	b := mat.NewDense(d, rank, nil)
	for j := 0; j < rank; j++ {
		scale := math.Sqrt(values[j])
		for i := 0; i < d; i++ {
			b.Set(i, j, u.At(i, j)*scale)
		}
	}

	return b, nil
}
