package esg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/economic-scenario-generator/internal/noise"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/errors"
)

func identity(d int) [][]float64 {
	out := make([][]float64, d)
	for i := range out {
		out[i] = make([]float64, d)
		out[i][i] = 1
	}
	return out
}

func TestNewParametersSplitsInstruments(t *testing.T) {
	p, err := NewParameters(
		[]float64{224, 0.03, 100},
		[]float64{0, 0.09, 0},
		[]float64{0.094, -0.007, 0.05},
		[]float64{0.16, 0.007, 0.2},
		identity(3),
	)
	require.NoError(t, err)

	assert.Equal(t, 3, p.Dim())
	assert.Equal(t, []int{0, 2}, p.Equities())
	assert.Equal(t, []int{1}, p.Rates())
	assert.Equal(t, 0.09, p.Reversion(1))
	assert.Equal(t, 0.2, p.Sigma(2))
}

func TestNewParametersCopiesInput(t *testing.T) {
	s0 := []float64{100}
	corr := identity(1)
	p, err := NewParameters(s0, []float64{0}, []float64{0.05}, []float64{0.2}, corr)
	require.NoError(t, err)

	s0[0] = 1
	corr[0][0] = 5
	assert.Equal(t, 100.0, p.S0(0))
	assert.Equal(t, 1.0, p.Correlation().At(0, 0))
}

func TestNewParametersRejects(t *testing.T) {
	tests := []struct {
		name      string
		s0        []float64
		a         []float64
		mu        []float64
		sigma     []float64
		corr      [][]float64
		badMatrix bool
	}{
		{
			name: "no instruments",
			corr: [][]float64{},
		},
		{
			name:  "length mismatch",
			s0:    []float64{1, 2},
			a:     []float64{0},
			mu:    []float64{0, 0},
			sigma: []float64{0.1, 0.1},
			corr:  identity(2),
		},
		{
			name:  "negative volatility",
			s0:    []float64{1},
			a:     []float64{0},
			mu:    []float64{0},
			sigma: []float64{-0.1},
			corr:  identity(1),
		},
		{
			name:  "not finite",
			s0:    []float64{math.NaN()},
			a:     []float64{0},
			mu:    []float64{0},
			sigma: []float64{0.1},
			corr:  identity(1),
		},
		{
			name:  "ragged matrix",
			s0:    []float64{1, 2},
			a:     []float64{0, 0},
			mu:    []float64{0, 0},
			sigma: []float64{0.1, 0.1},
			corr:  [][]float64{{1, 0}, {0}},
		},
		{
			name:      "asymmetric matrix",
			s0:        []float64{1, 2},
			a:         []float64{0, 0},
			mu:        []float64{0, 0},
			sigma:     []float64{0.1, 0.1},
			corr:      [][]float64{{1, 0.5}, {0.4, 1}},
			badMatrix: true,
		},
		{
			name:      "diagonal not one",
			s0:        []float64{1, 2},
			a:         []float64{0, 0},
			mu:        []float64{0, 0},
			sigma:     []float64{0.1, 0.1},
			corr:      [][]float64{{2, 0}, {0, 1}},
			badMatrix: true,
		},
		{
			name:      "entry out of bounds",
			s0:        []float64{1, 2},
			a:         []float64{0, 0},
			mu:        []float64{0, 0},
			sigma:     []float64{0.1, 0.1},
			corr:      [][]float64{{1, 1.5}, {1.5, 1}},
			badMatrix: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParameters(tt.s0, tt.a, tt.mu, tt.sigma, tt.corr)
			require.Error(t, err)
			assert.Equal(t, errors.ErrorTypeInvalidArgument, errors.TypeOf(err))
			assert.NotEmpty(t, errors.DetailsOf(err))
			assert.Equal(t, tt.badMatrix, errors.Is(err, noise.ErrInvalidCorrelationMatrix))
		})
	}
}

func TestNewParametersAcceptsRoundingNoise(t *testing.T) {
	corr := [][]float64{
		{1 + 1e-7, 1 + 1e-10},
		{1 + 1e-10, 1},
	}
	_, err := NewParameters([]float64{1, 1}, []float64{0, 0}, []float64{0, 0}, []float64{0.1, 0.1}, corr)
	assert.NoError(t, err)

	_, err = NewParameters([]float64{1, 1}, []float64{0, 0}, []float64{0, 0}, []float64{0.1, 0.1},
		[][]float64{{1.0000005, 0.2}, {0.2, 1}})
	assert.NoError(t, err)

	_, err = NewParameters([]float64{1, 1}, []float64{0, 0}, []float64{0, 0}, []float64{0.1, 0.1},
		[][]float64{{1.00001, 0.2}, {0.2, 1}})
	assert.Error(t, err)
}
