// Package risk turns per-asset impact distributions into financial risk
// measures: annual expected loss, loss volatility, exceedance probability
// curves and value at risk.
package risk

import (
	"math"
	"sort"

	"github.com/aristath/windward/internal/distrib"
)

// LossDistribution is the discretized annual loss distribution for one asset
// and hazard type, in currency units. Supports are strictly increasing and
// the masses sum to one: the probability of no impact is explicit mass at
// zero loss (or at the lowest representative loss of the impact grid).
type LossDistribution struct {
	supports []float64
	masses   []float64
	cum      []float64
}

// NewLossDistribution converts an impact distribution into a loss
// distribution by scaling the representative value of each impact bin (its
// midpoint, the convention used by every derived measure) with the asset
// value.
func NewLossDistribution(impact *distrib.ImpactDistrib, assetValue float64) LossDistribution {
	mids := impact.BinMidpoints()
	probs := impact.Probs()

	masses := make(map[float64]float64, len(mids)+1)
	total := 0.0
	for i, p := range probs {
		if p == 0 {
			continue
		}
		masses[mids[i]*assetValue] += p
		total += p
	}
	if residual := 1.0 - total; residual > 0 {
		masses[0] += residual
	}

	supports := make([]float64, 0, len(masses))
	for s := range masses {
		supports = append(supports, s)
	}
	sort.Float64s(supports)

	l := LossDistribution{
		supports: supports,
		masses:   make([]float64, len(supports)),
		cum:      make([]float64, len(supports)),
	}
	running := 0.0
	for i, s := range supports {
		l.masses[i] = masses[s]
		running += masses[s]
		l.cum[i] = running
	}
	return l
}

// Mean returns the annual expected loss.
func (l LossDistribution) Mean() float64 {
	mean := 0.0
	for i, s := range l.supports {
		mean += s * l.masses[i]
	}
	return mean
}

// StdDev returns the standard deviation of the annual loss.
func (l LossDistribution) StdDev() float64 {
	mean := l.Mean()
	variance := 0.0
	for i, s := range l.supports {
		variance += l.masses[i] * s * s
	}
	variance -= mean * mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// CDF returns the probability that the annual loss is at most x.
func (l LossDistribution) CDF(x float64) float64 {
	// binary search for the last support <= x
	i := sort.SearchFloat64s(l.supports, x)
	if i < len(l.supports) && l.supports[i] == x {
		return l.cum[i]
	}
	if i == 0 {
		return 0
	}
	return l.cum[i-1]
}

// VaR returns the loss at the given quantile by inverse-CDF lookup with
// linear interpolation between adjacent cumulative points. Quantiles landing
// on a flat segment of the CDF resolve to the higher-loss support, the
// conservative choice. VaR(0) is the minimum representable loss and VaR(1)
// the maximum representative loss.
func (l LossDistribution) VaR(q float64) float64 {
	n := len(l.supports)
	if q <= 0 {
		return l.supports[0]
	}
	if q >= 1 {
		return l.supports[n-1]
	}
	if q <= l.cum[0] {
		return l.supports[0]
	}
	i := sort.SearchFloat64s(l.cum, q)
	if i >= n {
		return l.supports[n-1]
	}
	if l.cum[i] == q {
		// exact hit: step across any zero-mass run towards higher loss
		for i+1 < n && l.cum[i+1] == q {
			i++
		}
		return l.supports[i]
	}
	span := l.cum[i] - l.cum[i-1]
	t := (q - l.cum[i-1]) / span
	return l.supports[i-1] + t*(l.supports[i]-l.supports[i-1])
}

// Convolve returns the distribution of the sum of two independent annual
// losses. Exact for the discrete supports involved; support counts grow
// multiplicatively, which is fine for the bin counts in play.
func Convolve(a, b LossDistribution) LossDistribution {
	masses := make(map[float64]float64, len(a.supports)*len(b.supports))
	for i, sa := range a.supports {
		for j, sb := range b.supports {
			masses[sa+sb] += a.masses[i] * b.masses[j]
		}
	}

	supports := make([]float64, 0, len(masses))
	for s := range masses {
		supports = append(supports, s)
	}
	sort.Float64s(supports)

	out := LossDistribution{
		supports: supports,
		masses:   make([]float64, len(supports)),
		cum:      make([]float64, len(supports)),
	}
	running := 0.0
	for i, s := range supports {
		out.masses[i] = masses[s]
		running += masses[s]
		out.cum[i] = running
	}
	return out
}

// OEP is the occurrence exceedance probability at a loss threshold: the
// probability that the largest single-hazard annual loss exceeds the
// threshold, assuming independence across hazard types.
func OEP(losses []LossDistribution, threshold float64) float64 {
	if len(losses) == 0 {
		return 0
	}
	noneExceeds := 1.0
	for _, l := range losses {
		noneExceeds *= l.CDF(threshold)
	}
	return 1 - noneExceeds
}

// AEP is the aggregate exceedance probability at a loss threshold: the
// probability that the sum of annual losses across hazard types exceeds the
// threshold, via exact convolution of the independent per-hazard
// distributions.
func AEP(losses []LossDistribution, threshold float64) float64 {
	if len(losses) == 0 {
		return 0
	}
	agg := losses[0]
	for _, l := range losses[1:] {
		agg = Convolve(agg, l)
	}
	return 1 - agg.CDF(threshold)
}

// ExceedanceThresholds returns a merged, ascending set of candidate loss
// thresholds from the supports of the given distributions, for reporting
// OEP/AEP curves.
func ExceedanceThresholds(losses []LossDistribution) []float64 {
	seen := make(map[float64]struct{})
	var out []float64
	for _, l := range losses {
		for _, s := range l.supports {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Float64s(out)
	return out
}
