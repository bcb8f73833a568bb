package esg

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/rzzdr/economic-scenario-generator/pkg/utils/errors"
)

// GBM integrates geometric Brownian motion with Euler steps. dB is D×c
// and the result is D×(c+1) with column 0 equal to s0.
func GBM(s0, mu, sigma []float64, dt float64, dB mat.Matrix) *mat.Dense {
	d, c := dB.Dims()
	out := mat.NewDense(d, c+1, nil)
	db := make([]float64, c)
	for i := 0; i < d; i++ {
		integrateGBM(out.RawRowView(i), s0[i], mu[i], sigma[i], dt, mat.Row(db, i, dB))
	}
	return out
}

// Vasicek integrates the mean-reverting rate model with Euler steps.
// Shapes follow GBM.
func Vasicek(r0, a, mu, sigma []float64, dt float64, dB mat.Matrix) *mat.Dense {
	d, c := dB.Dims()
	out := mat.NewDense(d, c+1, nil)
	db := make([]float64, c)
	for i := 0; i < d; i++ {
		integrateVasicek(out.RawRowView(i), r0[i], a[i], mu[i], sigma[i], dt, mat.Row(db, i, dB))
	}
	return out
}

// integrateGBM fills out, which holds len(db)+1 points starting at s0
func integrateGBM(out []float64, s0, mu, sigma, dt float64, db []float64) {
	out[0] = s0
	for j, x := range db {
		out[j+1] = out[j] + (mu*out[j]*dt + sigma*out[j]*x)
	}
}

func integrateVasicek(out []float64, r0, a, mu, sigma, dt float64, db []float64) {
	out[0] = r0
	for j, x := range db {
		out[j+1] = out[j] + (a*(mu-out[j])*dt + sigma*x)
	}
}

// Segment is the output of one path range
type Segment struct {
	Range  Range
	Equity *Tensor
	Rate   *Tensor
}

// Simulator integrates paths from a shared, read-only noise stream. It is
// safe to call SimulateRange concurrently for disjoint ranges.
type Simulator struct {
	params    *Parameters
	noise     *mat.Dense
	paths     int
	steps     int
	partition int

	dt          float64
	scaledSigma []float64
	equities    []int
	rates       []int
}

// NewSimulator binds parameters to a D×(paths·steps) noise stream.
// partition is the number of steps per year.
func NewSimulator(p *Parameters, noise *mat.Dense, paths, steps, partition int) (*Simulator, error) {
	if p == nil || noise == nil {
		return nil, errors.InvalidArgument("simulator requires parameters and noise")
	}
	if paths < 1 || steps < 1 || partition < 1 {
		return nil, errors.InvalidArgumentf("paths, steps and partition must be positive, got %d, %d, %d",
			paths, steps, partition)
	}
	rows, cols := noise.Dims()
	if rows != p.Dim() {
		return nil, errors.InvalidArgumentf("noise has %d rows for %d instruments", rows, p.Dim())
	}
	if cols != paths*steps {
		return nil, errors.InvalidArgumentf("noise has %d columns, want paths·steps = %d", cols, paths*steps)
	}

	root := math.Sqrt(float64(partition))
	scaled := make([]float64, p.Dim())
	for i := range scaled {
		scaled[i] = p.Sigma(i) / root
	}

	return &Simulator{
		params:      p,
		noise:       noise,
		paths:       paths,
		steps:       steps,
		partition:   partition,
		dt:          1 / float64(partition),
		scaledSigma: scaled,
		equities:    p.Equities(),
		rates:       p.Rates(),
	}, nil
}

// Paths returns the total path count of the stream
func (s *Simulator) Paths() int { return s.paths }

// Steps returns the points per path, including the initial value
func (s *Simulator) Steps() int { return s.steps }

// Horizon returns the time in years of the last point on each path
func (s *Simulator) Horizon() float64 {
	return float64(s.steps-1) * s.dt
}

// SimulateRange integrates the paths of r. Path n reads noise columns
// [n·steps+1, (n+1)·steps); the first column of each block is unused.
func (s *Simulator) SimulateRange(ctx context.Context, r Range) (*Segment, error) {
	if r.Start < 0 || r.End > s.paths || r.Start > r.End {
		return nil, errors.InvalidArgumentf("range %s outside [0, %d)", r, s.paths)
	}

	seg := &Segment{
		Range:  r,
		Equity: NewTensor(r.Len(), len(s.equities), s.steps),
		Rate:   NewTensor(r.Len(), len(s.rates), s.steps),
	}

	for n := r.Start; n < r.End; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		base := n * s.steps
		local := n - r.Start

		for k, i := range s.equities {
			db := s.noise.RawRowView(i)[base+1 : base+s.steps]
			integrateGBM(seg.Equity.Series(local, k), s.params.S0(i), s.params.Mu(i), s.scaledSigma[i], s.dt, db)
		}

		for k, i := range s.rates {
			db := s.noise.RawRowView(i)[base+1 : base+s.steps]
			integrateVasicek(seg.Rate.Series(local, k), s.params.S0(i), s.params.Reversion(i), s.params.Mu(i),
				s.scaledSigma[i], s.dt, db)
		}
	}

	return seg, nil
}
