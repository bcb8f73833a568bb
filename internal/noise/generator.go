package noise

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rzzdr/economic-scenario-generator/pkg/utils/errors"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/logger"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/pools"
)

// pcgStream is the second PCG word for seeded generators
const pcgStream = 0x9e3779b97f4a7c15

// Generator produces correlated noise streams. A Generator owns its random
// source and is not safe for concurrent use.
type Generator struct {
	src       rand.Source
	normal    distuv.Normal
	marginal  Marginal
	tolerance float64
	buffers   *pools.Float64SlicePool
	seeded    bool
	log       *logger.Logger
}

// Sample is one generated noise stream
type Sample struct {
	// Noise is D×M, one row per instrument
	Noise *mat.Dense
	// Rank is the number of retained factors of the correlation matrix
	Rank int
}

// Option configures a Generator
type Option func(*Generator)

// WithSeed makes the generator deterministic for a given (seed, shape)
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.src = rand.NewPCG(seed, seed^pcgStream)
		g.seeded = true
	}
}

// WithSource sets the random source directly. The caller must not share
// the source with other goroutines while the generator is in use.
func WithSource(src rand.Source) Option {
	return func(g *Generator) {
		if src != nil {
			g.src = src
			g.seeded = true
		}
	}
}

// WithMarginal replaces the standard normal marginal transform
func WithMarginal(m Marginal) Option {
	return func(g *Generator) {
		if m != nil {
			g.marginal = m
		}
	}
}

// WithTolerance sets the singular-value cutoff for factorization
func WithTolerance(tol float64) Option {
	return func(g *Generator) {
		if tol > 0 {
			g.tolerance = tol
		}
	}
}

// WithBufferPool recycles the independent-draw buffer through p
func WithBufferPool(p *pools.Float64SlicePool) Option {
	return func(g *Generator) {
		g.buffers = p
	}
}

// NewGenerator creates a noise generator. Without WithSeed or WithSource
// the generator is seeded from runtime entropy.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		marginal:  NormalMarginal{},
		tolerance: DefaultTolerance,
		log:       logger.GetLogger("noise.generator"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.src == nil {
		g.src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	g.normal = distuv.Normal{Mu: 0, Sigma: 1, Src: g.src}
	return g
}

// Seeded reports whether the generator is reproducible
func (g *Generator) Seeded() bool {
	return g.seeded
}

// Marginal returns the marginal transform in use
func (g *Generator) Marginal() Marginal {
	return g.marginal
}

// NormalSteps returns a D×m matrix whose rows have the marginal
// distribution (standard normal by default) and whose cross-row
// correlation approximates corr.
func (g *Generator) NormalSteps(corr mat.Matrix, m int) (*mat.Dense, error) {
	s, err := g.Sample(corr, m)
	if err != nil {
		return nil, err
	}
	return s.Noise, nil
}

// Sample is NormalSteps that also reports the retained rank
func (g *Generator) Sample(corr mat.Matrix, m int) (*Sample, error) {
	u, rank, err := g.copula(corr, m)
	if err != nil {
		return nil, err
	}

	d, _ := u.Dims()
	for i := 0; i < d; i++ {
		row := u.RawRowView(i)
		for j, v := range row {
			row[j] = g.marginal.Quantile(v)
		}
	}

	return &Sample{Noise: u, Rank: rank}, nil
}

// Copula returns a D×m matrix of uniforms on (0,1) carrying the dependency
// structure of corr.
func (g *Generator) Copula(corr mat.Matrix, m int) (*mat.Dense, error) {
	u, _, err := g.copula(corr, m)
	return u, err
}

func (g *Generator) copula(corr mat.Matrix, m int) (*mat.Dense, int, error) {
	if m < 1 {
		return nil, 0, errors.InvalidArgumentf("sample count must be positive, got %d", m)
	}

	b, err := LeftFactorize(corr, g.tolerance)
	if err != nil {
		return nil, 0, err
	}
	d, k := b.Dims()

	var buf []float64
	if g.buffers != nil {
		buf = g.buffers.Get(k * m)
		defer g.buffers.Put(buf)
	} else {
		buf = make([]float64, k*m)
	}
	for i := range buf {
		buf[i] = g.normal.Rand()
	}
	z := mat.NewDense(k, m, buf)

	x := mat.NewDense(d, m, nil)
	x.Mul(b, z)

	for i := 0; i < d; i++ {
		row := x.RawRowView(i)
		for j, v := range row {
			row[j] = distuv.UnitNormal.CDF(v)
		}
	}

	g.log.Debugf("Generated %dx%d copula sample from rank %d factor", d, m, k)
	return x, k, nil
}
