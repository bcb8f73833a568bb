package esg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	p, err := NewParameters(
		[]float64{100, 0.05},
		[]float64{0, 0.3},
		[]float64{0.1, 0.04},
		[]float64{0.2, 0.01},
		identity(2),
	)
	require.NoError(t, err)

	equity := NewTensor(100, 1, 2)
	rate := NewTensor(100, 1, 2)
	for n := 0; n < 100; n++ {
		equity.Set(n, 0, 0, 100)
		equity.Set(n, 0, 1, float64(51+n)) // 51..150
		rate.Set(n, 0, 0, 0.05)
		rate.Set(n, 0, 1, 0.04)
	}
	res := &Result{Equity: equity, Rate: rate}

	sum := Summarize(res, p, 1, SummaryOptions{Quantiles: []float64{0.5, 1.5}, Confidence: 0.95})
	require.Len(t, sum.Equities, 1)
	require.Len(t, sum.Rates, 1)

	eq := sum.Equities[0]
	assert.Equal(t, 0, eq.Index)
	assert.Equal(t, 100.0, eq.Initial)
	assert.InDelta(t, 100.5, eq.Mean, 1e-12)
	assert.Equal(t, 51.0, eq.Min)
	assert.Equal(t, 150.0, eq.Max)
	assert.Contains(t, eq.Quantiles, "0.5")
	assert.NotContains(t, eq.Quantiles, "1.5")
	require.NotNil(t, eq.Expected)
	assert.InDelta(t, 100*math.Exp(0.1), *eq.Expected, 1e-9)

	// Terminal returns run from -0.49 to 0.50; the 5% tail ends at -0.44.
	require.NotNil(t, eq.ValueAtRisk)
	require.NotNil(t, eq.ExpectedShortfall)
	assert.InDelta(t, 0.44, *eq.ValueAtRisk, 1e-9)
	assert.InDelta(t, 0.465, *eq.ExpectedShortfall, 1e-9)

	r := sum.Rates[0]
	assert.Equal(t, 1, r.Index)
	assert.InDelta(t, 0.04, r.Mean, 1e-12)
	assert.InDelta(t, 0, r.StdDev, 1e-12)
	assert.Nil(t, r.Expected)
	assert.Nil(t, r.ValueAtRisk)
}

func TestSummarizeSinglePath(t *testing.T) {
	p, err := NewParameters([]float64{10}, []float64{0}, []float64{0}, []float64{0.1}, identity(1))
	require.NoError(t, err)

	equity := NewTensor(1, 1, 3)
	equity.Set(0, 0, 2, 12)
	sum := Summarize(&Result{Equity: equity, Rate: NewTensor(1, 0, 3)}, p, 2.0/12, DefaultSummaryOptions())

	require.Len(t, sum.Equities, 1)
	assert.Equal(t, 12.0, sum.Equities[0].Mean)
	assert.Zero(t, sum.Equities[0].StdDev)
	assert.Empty(t, sum.Rates)
}
