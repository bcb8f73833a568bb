package models

import (
	"time"
)

// ScenarioRequest is the input of one scenario batch
type ScenarioRequest struct {
	// Paths is the number of simulated paths (N); the configured default is used when nil
	Paths *int `json:"N,omitempty"`
	// Years is the horizon in years (T); the configured default is used when nil
	Years *int `json:"T,omitempty"`

	S0         []float64   `json:"s0"`         // initial value
	Reversion  []float64   `json:"a"`          // speed of reversion, zero for equities
	Mu         []float64   `json:"mu"`         // drift (equities), long-run mean (rates)
	Sigma      []float64   `json:"sigma"`      // annualized volatility
	CorrMatrix [][]float64 `json:"corrmatrix"` // instrument correlation

	// Seed makes the batch reproducible when set
	Seed *uint64 `json:"seed,omitempty"`
	// Summary requests terminal statistics alongside the paths
	Summary bool `json:"summary,omitempty"`
}

// ScenarioResponse carries the full output of one batch
type ScenarioResponse struct {
	RunID     string        `json:"run_id"`
	GBM       [][][]float64 `json:"gbm"`     // (paths, equities, steps)
	Vasicek   [][][]float64 `json:"vasicek"` // (paths, rates, steps)
	Workers   int           `json:"workers"`
	ComputeMS float64       `json:"compute_ms"`
	Summary   *RunSummary   `json:"summary,omitempty"`
}

// Empty reports whether neither tensor has any path
func (r *ScenarioResponse) Empty() bool {
	return len(r.GBM) == 0 && len(r.Vasicek) == 0
}

// RunSummary holds terminal statistics per instrument family
type RunSummary struct {
	Equities []InstrumentSummary `json:"equities"`
	Rates    []InstrumentSummary `json:"rates"`
}

// InstrumentSummary describes the terminal distribution of one instrument
type InstrumentSummary struct {
	Index     int                `json:"index"` // position in the request vectors
	Initial   float64            `json:"initial"`
	Mean      float64            `json:"mean"`
	StdDev    float64            `json:"std_dev"`
	Min       float64            `json:"min"`
	Max       float64            `json:"max"`
	Quantiles map[string]float64 `json:"quantiles"`
	// Expected is the analytic mean at the final step; equities only
	Expected *float64 `json:"expected,omitempty"`
	// ValueAtRisk and ExpectedShortfall are terminal losses per unit of
	// initial value at the configured confidence; equities only
	ValueAtRisk       *float64 `json:"var,omitempty"`
	ExpectedShortfall *float64 `json:"expected_shortfall,omitempty"`
}

// RunEvent describes a completed batch without any path data
type RunEvent struct {
	Type        string    `json:"type"`
	RunID       string    `json:"run_id"`
	Paths       int       `json:"paths"`
	Steps       int       `json:"steps"`
	Frequency   int       `json:"frequency"`
	Equities    int       `json:"equities"`
	Rates       int       `json:"rates"`
	Rank        int       `json:"rank"`
	Workers     int       `json:"workers"`
	ComputeMS   float64   `json:"compute_ms"`
	Seeded      bool      `json:"seeded"`
	CompletedAt time.Time `json:"completed_at"`
}

// RunEventType is the Type of every RunEvent
const RunEventType = "scenario.run.completed"
