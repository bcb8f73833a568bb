package noise

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// tailClamp keeps uniforms that saturated to 0 or 1 away from the infinite
// quantiles.
const tailClamp = 1e-16

// Marginal maps copula uniforms onto a marginal distribution
type Marginal interface {
	Name() string
	Quantile(u float64) float64
}

// NormalMarginal is the standard normal marginal
type NormalMarginal struct{}

// Name implements Marginal
func (NormalMarginal) Name() string { return "normal" }

// Quantile implements Marginal
func (NormalMarginal) Quantile(u float64) float64 {
	switch {
	case u < tailClamp:
		u = tailClamp
	case u > 1-tailClamp:
		u = 1 - tailClamp
	}
	return distuv.UnitNormal.Quantile(u)
}
