package noise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/rzzdr/economic-scenario-generator/pkg/utils/errors"
)

func assertReconstructs(t *testing.T, a mat.Matrix, b *mat.Dense, tol float64) {
	t.Helper()
	var bbt mat.Dense
	bbt.Mul(b, b.T())

	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			assert.InDelta(t, a.At(i, j), bbt.At(i, j), tol, "entry (%d,%d)", i, j)
		}
	}
}

func TestLeftFactorizeRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		data     []float64
		dim      int
		wantRank int
	}{
		{
			name:     "full rank",
			data:     []float64{1, 0.5, 0.2, 0.5, 1, 0.3, 0.2, 0.3, 1},
			dim:      3,
			wantRank: 3,
		},
		{
			name:     "perfectly correlated pair",
			data:     []float64{1, 1, 0.2, 1, 1, 0.2, 0.2, 0.2, 1},
			dim:      3,
			wantRank: 2,
		},
		{
			name:     "identity",
			data:     []float64{1, 0, 0, 1},
			dim:      2,
			wantRank: 2,
		},
		{
			name:     "single instrument",
			data:     []float64{1},
			dim:      1,
			wantRank: 1,
		},
		{
			name:     "negative correlation",
			data:     []float64{1, -0.7, -0.7, 1},
			dim:      2,
			wantRank: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mat.NewDense(tt.dim, tt.dim, tt.data)
			b, err := LeftFactorize(a, DefaultTolerance)
			require.NoError(t, err)

			r, k := b.Dims()
			assert.Equal(t, tt.dim, r)
			assert.Equal(t, tt.wantRank, k)
			assertReconstructs(t, a, b, 1e-6)
		})
	}
}

func TestLeftFactorizeDefaultsTolerance(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 0.3, 0.3, 1})
	b, err := LeftFactorize(a, 0)
	require.NoError(t, err)
	assertReconstructs(t, a, b, 1e-6)
}

func TestLeftFactorizeZeroRank(t *testing.T) {
	a := mat.NewDense(2, 2, nil)
	_, err := LeftFactorize(a, DefaultTolerance)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeNumericDegeneracy, errors.TypeOf(err))
}

func TestValidateCorrelation(t *testing.T) {
	tests := []struct {
		name string
		m    mat.Matrix
	}{
		{"nil", nil},
		{"non-square", mat.NewDense(2, 3, []float64{1, 0, 0, 0, 1, 0})},
		{"asymmetric", mat.NewDense(2, 2, []float64{1, 0.5, 0.4, 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCorrelation(tt.m)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCorrelationMatrix))
			assert.Equal(t, errors.ErrorTypeInvalidArgument, errors.TypeOf(err))
		})
	}

	assert.NoError(t, ValidateCorrelation(mat.NewDense(2, 2, []float64{1, 0.5, 0.5 + 1e-10, 1})))
}
