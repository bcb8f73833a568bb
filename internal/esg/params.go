// Package esg simulates correlated equity (geometric Brownian motion) and
// rate (Vasicek) scenario paths and spreads the path workload over workers.
package esg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/rzzdr/economic-scenario-generator/internal/noise"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/errors"
)

const (
	diagonalTolerance = 1e-6
	boundTolerance    = 1e-9
)

// Parameters are the validated, immutable model inputs of one request.
// Instruments with zero reversion speed are equities, all others are rates.
type Parameters struct {
	s0        []float64
	reversion []float64
	mu        []float64
	sigma     []float64
	corr      *mat.Dense

	equities []int
	rates    []int
}

// NewParameters validates and copies the per-instrument vectors and the
// correlation matrix.
func NewParameters(s0, reversion, mu, sigma []float64, corr [][]float64) (*Parameters, error) {
	var details []string

	d := len(s0)
	if d == 0 {
		details = append(details, "s0: at least one instrument is required")
	}
	vectors := []struct {
		name string
		v    []float64
	}{{"s0", s0}, {"a", reversion}, {"mu", mu}, {"sigma", sigma}}
	for _, vec := range vectors {
		if len(vec.v) != d {
			details = append(details, fmt.Sprintf("%s: length %d does not match s0 length %d", vec.name, len(vec.v), d))
		}
		for i, x := range vec.v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				details = append(details, fmt.Sprintf("%s[%d]: value is not finite", vec.name, i))
			}
		}
	}
	for i, x := range sigma {
		if x < 0 {
			details = append(details, fmt.Sprintf("sigma[%d]: volatility must be non-negative", i))
		}
	}
	if len(corr) != d {
		details = append(details, fmt.Sprintf("corrmatrix: %d rows for %d instruments", len(corr), d))
	}
	for i, row := range corr {
		if len(row) != len(corr) {
			details = append(details, fmt.Sprintf("corrmatrix: row %d has %d columns, want %d", i, len(row), len(corr)))
		}
	}
	if len(details) > 0 {
		return nil, errors.InvalidArgument("invalid simulation parameters", details...)
	}

	c := mat.NewDense(d, d, nil)
	for i, row := range corr {
		c.SetRow(i, row)
	}
	if err := noise.ValidateCorrelation(c); err != nil {
		return nil, &errors.AppError{
			Type:    errors.ErrorTypeInvalidArgument,
			Message: "invalid simulation parameters",
			Details: []string{err.Error()},
			Err:     err,
		}
	}
	for i := 0; i < d; i++ {
		if math.Abs(c.At(i, i)-1) > diagonalTolerance {
			details = append(details, fmt.Sprintf("corrmatrix[%d][%d]: diagonal must be 1, got %g", i, i, c.At(i, i)))
		}
		for j := 0; j < d; j++ {
			if i != j && math.Abs(c.At(i, j)) > 1+boundTolerance {
				details = append(details, fmt.Sprintf("corrmatrix[%d][%d]: %g is outside [-1, 1]", i, j, c.At(i, j)))
			}
		}
	}
	if len(details) > 0 {
		return nil, &errors.AppError{
			Type:    errors.ErrorTypeInvalidArgument,
			Message: "invalid simulation parameters",
			Details: details,
			Err:     noise.ErrInvalidCorrelationMatrix,
		}
	}

	p := &Parameters{
		s0:        append([]float64(nil), s0...),
		reversion: append([]float64(nil), reversion...),
		mu:        append([]float64(nil), mu...),
		sigma:     append([]float64(nil), sigma...),
		corr:      c,
	}
	for i, a := range p.reversion {
		if a == 0 {
			p.equities = append(p.equities, i)
		} else {
			p.rates = append(p.rates, i)
		}
	}
	return p, nil
}

// Dim returns the instrument count
func (p *Parameters) Dim() int { return len(p.s0) }

// Correlation returns the correlation matrix. Callers must not modify it.
func (p *Parameters) Correlation() mat.Matrix { return p.corr }

// Equities returns the instrument indices simulated as GBM
func (p *Parameters) Equities() []int { return append([]int(nil), p.equities...) }

// Rates returns the instrument indices simulated as Vasicek processes
func (p *Parameters) Rates() []int { return append([]int(nil), p.rates...) }

// S0 returns the initial value of instrument i
func (p *Parameters) S0(i int) float64 { return p.s0[i] }

// Mu returns the drift or long-run mean of instrument i
func (p *Parameters) Mu(i int) float64 { return p.mu[i] }

// Reversion returns the reversion speed of instrument i
func (p *Parameters) Reversion(i int) float64 { return p.reversion[i] }

// Sigma returns the annualized volatility of instrument i
func (p *Parameters) Sigma(i int) float64 { return p.sigma[i] }
