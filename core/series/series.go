// Package series holds exogenous time series aligned to the 5-minute grid,
// such as day-ahead prices or the system imbalance signal.
package series

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrLengthMismatch is returned when a series does not cover the grid exactly.
	ErrLengthMismatch = errors.New("series length mismatch")
	// ErrEmpty is returned for series without values.
	ErrEmpty = errors.New("series is empty")
)

// Series is one value per grid step.
type Series struct {
	Name   string
	Values []float64
}

// New wraps values.
func New(name string, values []float64) *Series {
	return &Series{Name: name, Values: values}
}

// Len returns the number of steps.
func (s *Series) Len() int { return len(s.Values) }

// CheckLength fails unless the series has exactly expected values.
func (s *Series) CheckLength(expected int) error {
	if len(s.Values) == 0 {
		return fmt.Errorf("%w: %s", ErrEmpty, s.Name)
	}
	if len(s.Values) != expected {
		return fmt.Errorf("%w: %s has %d values, grid has %d steps", ErrLengthMismatch, s.Name, len(s.Values), expected)
	}
	return nil
}

// At returns the value at a global grid step. Steps past the end wrap to the
// start of the year so that the last week can spill into the next one.
func (s *Series) At(step int) float64 {
	n := len(s.Values)
	if n == 0 {
		return 0
	}
	i := step % n
	if i < 0 {
		i += n
	}
	return s.Values[i]
}

// Window copies n values starting at offset.
func (s *Series) Window(offset, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = s.At(offset + i)
	}
	return out
}

// Normalized returns the window scaled so that its largest magnitude is 1. A
// window of zeros stays zero.
func (s *Series) Normalized(offset, n int) []float64 {
	w := s.Window(offset, n)
	maxAbs := 0.0
	for _, v := range w {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	if maxAbs == 0 {
		return w
	}
	for i := range w {
		w[i] /= maxAbs
	}
	return w
}
