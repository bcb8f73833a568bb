package esg

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rzzdr/economic-scenario-generator/pkg/models"
)

// SummaryOptions controls Summarize
type SummaryOptions struct {
	// Quantiles of the terminal distribution to report, each in (0, 1)
	Quantiles []float64
	// Confidence of the equity VaR and expected shortfall, in (0, 1)
	Confidence float64
}

// DefaultSummaryOptions reports the 5/50/95 percentiles and 99% tail risk
func DefaultSummaryOptions() SummaryOptions {
	return SummaryOptions{
		Quantiles:  []float64{0.05, 0.5, 0.95},
		Confidence: 0.99,
	}
}

// Summarize computes terminal statistics for every instrument of res.
// horizon is the time in years of the last step.
func Summarize(res *Result, p *Parameters, horizon float64, opts SummaryOptions) *models.RunSummary {
	if opts.Confidence <= 0 || opts.Confidence >= 1 {
		opts.Confidence = DefaultSummaryOptions().Confidence
	}

	out := &models.RunSummary{
		Equities: make([]models.InstrumentSummary, 0, len(p.equities)),
		Rates:    make([]models.InstrumentSummary, 0, len(p.rates)),
	}

	for k, i := range p.equities {
		s := summarizeTerminal(res.Equity.Terminal(k), i, p.S0(i), opts.Quantiles)
		expected := p.S0(i) * math.Exp(p.Mu(i)*horizon)
		s.Expected = &expected
		if p.S0(i) != 0 && res.Equity.paths > 0 {
			v, es := tailLoss(res.Equity.Terminal(k), p.S0(i), opts.Confidence)
			s.ValueAtRisk, s.ExpectedShortfall = &v, &es
		}
		out.Equities = append(out.Equities, s)
	}
	for k, i := range p.rates {
		out.Rates = append(out.Rates, summarizeTerminal(res.Rate.Terminal(k), i, p.S0(i), opts.Quantiles))
	}
	return out
}

func summarizeTerminal(x []float64, index int, initial float64, quantiles []float64) models.InstrumentSummary {
	s := models.InstrumentSummary{
		Index:     index,
		Initial:   initial,
		Quantiles: make(map[string]float64, len(quantiles)),
	}
	if len(x) == 0 {
		return s
	}

	s.Mean, s.StdDev = stat.MeanStdDev(x, nil)
	if len(x) == 1 {
		s.StdDev = 0
	}
	s.Min, s.Max = floats.Min(x), floats.Max(x)

	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	for _, q := range quantiles {
		if q <= 0 || q >= 1 {
			continue
		}
		s.Quantiles[strconv.FormatFloat(q, 'g', -1, 64)] = stat.Quantile(q, stat.Empirical, sorted, nil)
	}
	return s
}

// tailLoss returns the historical VaR and expected shortfall of the
// terminal return distribution, as positive fractions of the initial value.
func tailLoss(terminal []float64, initial, confidence float64) (float64, float64) {
	returns := make([]float64, len(terminal))
	for i, v := range terminal {
		returns[i] = v/initial - 1
	}
	sort.Float64s(returns)

	index := int(math.Floor((1 - confidence) * float64(len(returns))))
	if index >= len(returns) {
		index = len(returns) - 1
	}
	valueAtRisk := math.Max(-returns[index], 0)

	tail := returns[:index+1]
	shortfall := math.Max(-stat.Mean(tail, nil), 0)
	return valueAtRisk, shortfall
}
