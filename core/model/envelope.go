package model

import "math"

// Affine is a line a·soc + b.
type Affine struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// At evaluates the line.
func (a Affine) At(soc float64) float64 { return a.Slope*soc + a.Intercept }

// Envelope bounds the power a battery accepts relative to its rating as the
// minimum of a set of affine functions of the state of charge.
type Envelope []Affine

// DefaultEnvelope is the two-piece linearised charging curve of a truck battery.
var DefaultEnvelope = Envelope{
	{Slope: -0.177038, Intercept: 0.970903},
	{Slope: -1.51705, Intercept: 1.6336},
}

// Factor returns the admissible fraction of rated power at soc.
func (e Envelope) Factor(soc float64) float64 {
	f := math.Inf(1)
	for _, a := range e {
		f = math.Min(f, a.At(soc))
	}
	if math.IsInf(f, 1) {
		return 1
	}
	return math.Max(0, f)
}

// MaxPowerKW returns the power limit of a battery rated ratedKW at soc.
func (e Envelope) MaxPowerKW(soc, ratedKW float64) float64 {
	return e.Factor(soc) * ratedKW
}
