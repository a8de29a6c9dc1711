// Package distrib provides the distribution value objects of the risk kernel:
// the annual hazard intensity distribution at an asset location, the
// conditional vulnerability matrix, and the impact distribution obtained by
// combining the two. All three are immutable once constructed.
package distrib

import (
	"errors"
	"fmt"
	"math"

	"github.com/aristath/windward/internal/hazard"
	"github.com/aristath/windward/pkg/curves"
)

// MassTolerance is the tolerance for probability mass checks: vulnerability
// rows summing to one and mass conservation across the combinator.
const MassTolerance = 1e-9

// ErrInvalidDistrib indicates malformed bin edges or probabilities.
var ErrInvalidDistrib = errors.New("invalid distribution")

// validateBins checks bin edges and probabilities. Edges must be
// non-decreasing with length len(probs)+1; a zero-width bin is permitted (the
// terminal residual-mass bin of an exceedance curve). Probabilities must be
// non-negative.
func validateBins(edges, probs []float64) error {
	if len(edges) != len(probs)+1 {
		return fmt.Errorf("%w: %d bin edges for %d probabilities", ErrInvalidDistrib, len(edges), len(probs))
	}
	if len(probs) == 0 {
		return fmt.Errorf("%w: no bins", ErrInvalidDistrib)
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] < edges[i-1] {
			return fmt.Errorf("%w: bin edges must be non-decreasing (index %d)", ErrInvalidDistrib, i)
		}
	}
	for i, p := range probs {
		if p < 0 {
			return fmt.Errorf("%w: negative probability %g at bin %d", ErrInvalidDistrib, p, i)
		}
	}
	return nil
}

// midpoints returns the representative value of each bin. The midpoint is the
// single representative-value convention used across all derived measures.
func midpoints(edges []float64) []float64 {
	mids := make([]float64, len(edges)-1)
	for i := range mids {
		mids[i] = 0.5 * (edges[i] + edges[i+1])
	}
	return mids
}

// HazardEventDistrib is the annual intensity distribution of a hazard at an
// asset location: probability i is the annual chance that an event occurs with
// intensity in bin i.
type HazardEventDistrib struct {
	hazardType hazard.Type
	edges      []float64
	probs      []float64
}

// NewHazardEventDistrib creates a hazard event distribution over intensity
// bins. Returns ErrInvalidDistrib (wrapped) on malformed input.
func NewHazardEventDistrib(hazardType hazard.Type, edges, probs []float64) (*HazardEventDistrib, error) {
	if err := validateBins(edges, probs); err != nil {
		return nil, err
	}
	return &HazardEventDistrib{
		hazardType: hazardType,
		edges:      append([]float64(nil), edges...),
		probs:      append([]float64(nil), probs...),
	}, nil
}

// HazardType returns the hazard type the distribution describes.
func (d *HazardEventDistrib) HazardType() hazard.Type { return d.hazardType }

// IntensityBinEdges returns a copy of the intensity bin edges.
func (d *HazardEventDistrib) IntensityBinEdges() []float64 {
	return append([]float64(nil), d.edges...)
}

// Probs returns a copy of the per-bin occurrence probabilities.
func (d *HazardEventDistrib) Probs() []float64 {
	return append([]float64(nil), d.probs...)
}

// TotalProb returns the total annual occurrence probability.
func (d *HazardEventDistrib) TotalProb() float64 {
	total := 0.0
	for _, p := range d.probs {
		total += p
	}
	return total
}

// VulnerabilityDistrib is the conditional damage model: row i is a probability
// distribution over impact bins given hazard occurrence in intensity bin i.
type VulnerabilityDistrib struct {
	hazardType     hazard.Type
	intensityEdges []float64
	impactEdges    []float64
	matrix         [][]float64 // n intensity bins x m impact bins
}

// NewVulnerabilityDistrib creates a vulnerability distribution. Each matrix
// row must sum to 1 within MassTolerance.
func NewVulnerabilityDistrib(hazardType hazard.Type, intensityEdges, impactEdges []float64, matrix [][]float64) (*VulnerabilityDistrib, error) {
	if len(matrix) != len(intensityEdges)-1 {
		return nil, fmt.Errorf("%w: %d matrix rows for %d intensity bins", ErrInvalidDistrib, len(matrix), len(intensityEdges)-1)
	}
	rows := make([][]float64, len(matrix))
	for i, row := range matrix {
		if len(row) != len(impactEdges)-1 {
			return nil, fmt.Errorf("%w: row %d has %d columns for %d impact bins", ErrInvalidDistrib, i, len(row), len(impactEdges)-1)
		}
		sum := 0.0
		for j, v := range row {
			if v < 0 {
				return nil, fmt.Errorf("%w: negative entry %g at (%d, %d)", ErrInvalidDistrib, v, i, j)
			}
			sum += v
		}
		if math.Abs(sum-1.0) > rowSumTolerance {
			return nil, fmt.Errorf("%w: row %d sums to %g, want 1", ErrInvalidDistrib, i, sum)
		}
		rows[i] = append([]float64(nil), row...)
	}
	for i := 1; i < len(intensityEdges); i++ {
		if intensityEdges[i] < intensityEdges[i-1] {
			return nil, fmt.Errorf("%w: intensity bin edges must be non-decreasing (index %d)", ErrInvalidDistrib, i)
		}
	}
	for i := 1; i < len(impactEdges); i++ {
		if impactEdges[i] < impactEdges[i-1] {
			return nil, fmt.Errorf("%w: impact bin edges must be non-decreasing (index %d)", ErrInvalidDistrib, i)
		}
	}
	return &VulnerabilityDistrib{
		hazardType:     hazardType,
		intensityEdges: append([]float64(nil), intensityEdges...),
		impactEdges:    append([]float64(nil), impactEdges...),
		matrix:         rows,
	}, nil
}

// rowSumTolerance is looser than MassTolerance: vulnerability rows come from
// numerically integrated damage curves.
const rowSumTolerance = 1e-6

// HazardType returns the hazard type the matrix applies to.
func (v *VulnerabilityDistrib) HazardType() hazard.Type { return v.hazardType }

// IntensityBinEdges returns a copy of the intensity bin edges.
func (v *VulnerabilityDistrib) IntensityBinEdges() []float64 {
	return append([]float64(nil), v.intensityEdges...)
}

// ImpactBinEdges returns a copy of the impact bin edges.
func (v *VulnerabilityDistrib) ImpactBinEdges() []float64 {
	return append([]float64(nil), v.impactEdges...)
}

// Matrix returns a copy of the conditional probability matrix.
func (v *VulnerabilityDistrib) Matrix() [][]float64 {
	out := make([][]float64, len(v.matrix))
	for i, row := range v.matrix {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// ImpactDistrib is the probability histogram of damage or disruption for an
// asset under a single hazard type.
type ImpactDistrib struct {
	hazardType hazard.Type
	edges      []float64
	probs      []float64
}

// NewImpactDistrib creates an impact distribution over impact bins.
func NewImpactDistrib(hazardType hazard.Type, edges, probs []float64) (*ImpactDistrib, error) {
	if err := validateBins(edges, probs); err != nil {
		return nil, err
	}
	return &ImpactDistrib{
		hazardType: hazardType,
		edges:      append([]float64(nil), edges...),
		probs:      append([]float64(nil), probs...),
	}, nil
}

// HazardType returns the hazard type that produced the impacts.
func (d *ImpactDistrib) HazardType() hazard.Type { return d.hazardType }

// ImpactBinEdges returns a copy of the impact bin edges.
func (d *ImpactDistrib) ImpactBinEdges() []float64 {
	return append([]float64(nil), d.edges...)
}

// Probs returns a copy of the per-bin probabilities.
func (d *ImpactDistrib) Probs() []float64 {
	return append([]float64(nil), d.probs...)
}

// TotalProb returns the total annual probability of any impact.
func (d *ImpactDistrib) TotalProb() float64 {
	total := 0.0
	for _, p := range d.probs {
		total += p
	}
	return total
}

// BinMidpoints returns the representative value of each impact bin.
func (d *ImpactDistrib) BinMidpoints() []float64 {
	return midpoints(d.edges)
}

// Mean returns the annual expected impact, using bin midpoints as
// representative values.
func (d *ImpactDistrib) Mean() float64 {
	mean := 0.0
	mids := midpoints(d.edges)
	for i, p := range d.probs {
		mean += p * mids[i]
	}
	return mean
}

// StdDev returns the standard deviation of the annual impact around the mean.
// The distribution includes the implicit no-impact mass at zero when the bin
// probabilities sum to less than one.
func (d *ImpactDistrib) StdDev() float64 {
	mean := d.Mean()
	mids := midpoints(d.edges)
	variance := 0.0
	for i, p := range d.probs {
		variance += p * mids[i] * mids[i]
	}
	// mass not covered by the bins sits at zero impact and contributes
	// nothing to E[X^2]
	variance -= mean * mean
	if variance < 0 {
		variance = 0 // round-off
	}
	return math.Sqrt(variance)
}

// ToExceedanceCurve converts the impact distribution back into an exceedance
// curve over impact values. Zero-probability bins carry no exceedance point
// of their own and are folded into the next occupied bin below them.
func (d *ImpactDistrib) ToExceedanceCurve() (*curves.ExceedanceCurve, error) {
	// walk from the top bin down, accumulating exceedance probability at
	// each lower bin edge; empty bins would duplicate the running sum so
	// only occupied bins contribute a point
	var probs, values []float64
	running := 0.0
	for i := len(d.probs) - 1; i >= 0; i-- {
		if d.probs[i] == 0 {
			continue
		}
		running += d.probs[i]
		probs = append(probs, running)
		values = append(values, d.edges[i])
	}
	if len(probs) == 0 {
		return nil, errors.New("impact distribution has no probability mass")
	}
	// reverse into decreasing-probability order
	for i, j := 0, len(probs)-1; i < j; i, j = i+1, j-1 {
		probs[i], probs[j] = probs[j], probs[i]
		values[i], values[j] = values[j], values[i]
	}
	return curves.New(probs, values)
}
