// Package curves provides exceedance curve types and the conversion from
// exceedance (cumulative) probabilities to discrete probability bins.
//
// An exceedance curve gives, for each intensity value, the annual probability
// that an event occurs with intensity greater than or equal to that value.
// Exceedance probability is the reciprocal of the return period in years.
package curves

import (
	"errors"
	"fmt"
)

// ErrInvalidCurve indicates a malformed exceedance curve input.
// Use errors.Is to match errors returned by this package.
var ErrInvalidCurve = errors.New("invalid exceedance curve")

// MinCurvePoints is the minimum number of points needed to form a single
// probability bin.
const MinCurvePoints = 2

// ExceedanceCurve is a sampled exceedance curve: probabilities sorted strictly
// decreasing, values sorted non-decreasing. The zero value is not usable;
// construct with New.
type ExceedanceCurve struct {
	probs  []float64
	values []float64
}

// New creates an exceedance curve from probability and value samples.
//
// Args:
//   - probs: exceedance probabilities in (0, 1], strictly decreasing
//   - values: intensity values, non-decreasing, same length as probs
//
// Returns ErrInvalidCurve (wrapped) if fewer than two points are supplied, the
// lengths differ, probabilities are not strictly decreasing, or values
// decrease.
func New(probs, values []float64) (*ExceedanceCurve, error) {
	if len(probs) != len(values) {
		return nil, fmt.Errorf("%w: %d probabilities vs %d values", ErrInvalidCurve, len(probs), len(values))
	}
	if len(probs) < MinCurvePoints {
		return nil, fmt.Errorf("%w: need at least %d points, got %d", ErrInvalidCurve, MinCurvePoints, len(probs))
	}
	for i, p := range probs {
		if p <= 0 || p > 1 {
			return nil, fmt.Errorf("%w: probability %g at index %d outside (0, 1]", ErrInvalidCurve, p, i)
		}
		if i > 0 && probs[i] >= probs[i-1] {
			return nil, fmt.Errorf("%w: probabilities must be strictly decreasing (index %d)", ErrInvalidCurve, i)
		}
		if i > 0 && values[i] < values[i-1] {
			return nil, fmt.Errorf("%w: values must be non-decreasing (index %d)", ErrInvalidCurve, i)
		}
	}
	c := &ExceedanceCurve{
		probs:  append([]float64(nil), probs...),
		values: append([]float64(nil), values...),
	}
	return c, nil
}

// FromReturnPeriods creates an exceedance curve from return periods in years.
// Return periods must be strictly increasing; the exceedance probability of
// each point is the reciprocal of its return period.
func FromReturnPeriods(returnPeriods, intensities []float64) (*ExceedanceCurve, error) {
	probs := make([]float64, len(returnPeriods))
	for i, rp := range returnPeriods {
		if rp <= 0 {
			return nil, fmt.Errorf("%w: return period %g at index %d must be positive", ErrInvalidCurve, rp, i)
		}
		probs[i] = 1.0 / rp
	}
	return New(probs, intensities)
}

// Len returns the number of sampled points.
func (c *ExceedanceCurve) Len() int { return len(c.probs) }

// Probs returns a copy of the exceedance probabilities.
func (c *ExceedanceCurve) Probs() []float64 {
	return append([]float64(nil), c.probs...)
}

// Values returns a copy of the intensity values.
func (c *ExceedanceCurve) Values() []float64 {
	return append([]float64(nil), c.values...)
}

// Value returns the intensity at a given exceedance probability, linearly
// interpolated between sample points and flat beyond either end.
func (c *ExceedanceCurve) Value(prob float64) float64 {
	// probs are decreasing; scan for the surrounding pair
	if prob >= c.probs[0] {
		return c.values[0]
	}
	n := len(c.probs)
	if prob <= c.probs[n-1] {
		return c.values[n-1]
	}
	for i := 1; i < n; i++ {
		if prob > c.probs[i] {
			pl, pu := c.probs[i-1], c.probs[i]
			vl, vu := c.values[i-1], c.values[i]
			return vl + (prob-pl)*(vu-vl)/(pu-pl)
		}
	}
	return c.values[n-1]
}

// AddValuePoint returns a new curve with an extra point at the given intensity
// value, its probability interpolated from the existing curve. Points outside
// the sampled range are added with flat extrapolation. Adding a value already
// present returns the curve unchanged. Used to align curves and bins before
// constructing distributions.
func (c *ExceedanceCurve) AddValuePoint(value float64) *ExceedanceCurve {
	n := len(c.values)
	i := 0
	for i < n && c.values[i] < value {
		i++
	}
	if i < n && c.values[i] == value {
		return c
	}

	values := make([]float64, 0, n+1)
	probs := make([]float64, 0, n+1)
	values = append(values, c.values[:i]...)
	probs = append(probs, c.probs[:i]...)

	var p float64
	switch {
	case i == 0:
		p = c.probs[0] // flat extrapolation
	case i == n:
		p = c.probs[n-1] // flat extrapolation
	default:
		vl, vu := c.values[i-1], c.values[i]
		pl, pu := c.probs[i-1], c.probs[i]
		p = pl + (value-vl)*(pu-pl)/(vu-vl)
	}
	values = append(values, value)
	probs = append(probs, p)
	values = append(values, c.values[i:]...)
	probs = append(probs, c.probs[i:]...)

	return &ExceedanceCurve{probs: probs, values: values}
}

// ProbabilityBins converts the curve into contiguous intensity bins of
// constant probability density, equivalent to assuming linear interpolation of
// the exceedance curve between sample points. The probability of bin i is the
// difference between the exceedance probabilities of points i and i+1.
//
// Conventions, applied consistently:
//   - mass above the first (most frequent) point is treated as non-occurrence:
//     no implicit bin is created below the lowest sampled intensity;
//   - the residual probability beyond the longest sampled return period is
//     assigned to a terminal zero-width bin at the highest observed intensity,
//     so that the bin probabilities sum exactly to the first exceedance
//     probability.
//
// Returns bin edges of length n+1 and n probabilities.
func (c *ExceedanceCurve) ProbabilityBins() (edges, probs []float64) {
	n := len(c.probs)
	edges = make([]float64, 0, n+1)
	probs = make([]float64, 0, n)
	edges = append(edges, c.values...)
	for i := 0; i+1 < n; i++ {
		probs = append(probs, c.probs[i]-c.probs[i+1])
	}
	// terminal zero-width bin holding the residual tail mass
	edges = append(edges, c.values[n-1])
	probs = append(probs, c.probs[n-1])
	return edges, probs
}
