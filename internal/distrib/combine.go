package distrib

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrAlignment indicates mismatched intensity bin edges between a hazard event
// distribution and a vulnerability distribution. The combinator never re-bins;
// alignment is the caller's responsibility.
var ErrAlignment = errors.New("intensity bin edges misaligned")

// negativeClamp bounds the negative round-off that Combine silently corrects.
// Anything more negative is a real input error and is reported.
const negativeClamp = 1e-12

// Combine computes the impact distribution q = p^T V from a hazard event
// distribution and a vulnerability distribution over identical intensity bins.
//
// Preconditions: the intensity bin edges of both inputs are exactly equal
// (bitwise, not within tolerance) and both carry the same hazard type.
// Postcondition: the total impact probability equals the total hazard event
// probability within MassTolerance.
func Combine(event *HazardEventDistrib, vuln *VulnerabilityDistrib) (*ImpactDistrib, error) {
	if event.hazardType != vuln.hazardType {
		return nil, fmt.Errorf("%w: hazard types %s and %s", ErrAlignment, event.hazardType, vuln.hazardType)
	}
	if len(event.edges) != len(vuln.intensityEdges) {
		return nil, fmt.Errorf("%w: %d vs %d intensity bin edges", ErrAlignment, len(event.edges), len(vuln.intensityEdges))
	}
	for i := range event.edges {
		if event.edges[i] != vuln.intensityEdges[i] {
			return nil, fmt.Errorf("%w: edge %d differs (%g vs %g)", ErrAlignment, i, event.edges[i], vuln.intensityEdges[i])
		}
	}

	n := len(event.probs)
	m := len(vuln.impactEdges) - 1

	flat := make([]float64, 0, n*m)
	for _, row := range vuln.matrix {
		flat = append(flat, row...)
	}
	v := mat.NewDense(n, m, flat)
	p := mat.NewVecDense(n, event.Probs())

	var q mat.VecDense
	q.MulVec(v.T(), p)

	probs := make([]float64, m)
	for j := 0; j < m; j++ {
		probs[j] = q.AtVec(j)
		if probs[j] < 0 {
			if probs[j] < -negativeClamp {
				return nil, fmt.Errorf("%w: impact probability %g at bin %d", ErrInvalidDistrib, probs[j], j)
			}
			probs[j] = 0
		}
	}

	impact, err := NewImpactDistrib(event.hazardType, vuln.impactEdges, probs)
	if err != nil {
		return nil, err
	}

	if diff := math.Abs(impact.TotalProb() - event.TotalProb()); diff > MassTolerance {
		return nil, fmt.Errorf("%w: mass not conserved, drift %g", ErrInvalidDistrib, diff)
	}
	return impact, nil
}
