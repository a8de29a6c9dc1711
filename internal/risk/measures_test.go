package risk

import (
	"testing"

	"github.com/aristath/windward/internal/distrib"
	"github.com/aristath/windward/internal/hazard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustImpact(t *testing.T, edges, probs []float64) *distrib.ImpactDistrib {
	t.Helper()
	impact, err := distrib.NewImpactDistrib(hazard.RiverineInundation, edges, probs)
	require.NoError(t, err)
	return impact
}

func TestLossDistribution_IdentityVulnerabilityAEL(t *testing.T) {
	// A zero-width "damaged" bin at impact fraction 1: AEL is exactly the
	// total occurrence probability times the asset value.
	edges := []float64{0, 1, 2, 3}
	probs := []float64{0.1, 0.05, 0.02}

	event, err := distrib.NewHazardEventDistrib(hazard.RiverineInundation, edges, probs)
	require.NoError(t, err)
	vuln, err := distrib.NewVulnerabilityDistrib(hazard.RiverineInundation, edges, []float64{1, 1}, [][]float64{{1}, {1}, {1}})
	require.NoError(t, err)
	impact, err := distrib.Combine(event, vuln)
	require.NoError(t, err)

	const assetValue = 1e6
	loss := NewLossDistribution(impact, assetValue)

	assert.InDelta(t, 0.17*assetValue, loss.Mean(), 1e-6)
}

func TestLossDistribution_VaRBounds(t *testing.T) {
	impact := mustImpact(t, []float64{0, 100, 200, 300}, []float64{0.1, 0.05, 0.02})
	loss := NewLossDistribution(impact, 1.0)

	// VaR(0) is the minimum representable loss: the explicit no-impact mass
	// puts it at zero.
	assert.Equal(t, 0.0, loss.VaR(0))
	// VaR(1) is the maximum bin's representative value.
	assert.Equal(t, 250.0, loss.VaR(1))
}

func TestLossDistribution_VaRInterpolation(t *testing.T) {
	impact := mustImpact(t, []float64{0, 100, 200, 300}, []float64{0.1, 0.05, 0.02})
	loss := NewLossDistribution(impact, 1.0)

	// supports: 0 (p=0.83), 50 (0.1), 150 (0.05), 250 (0.02)
	// cum:      0.83, 0.93, 0.98, 1.00
	assert.Equal(t, 0.0, loss.VaR(0.5), "quantile inside the no-impact mass")
	assert.InDelta(t, 50.0, loss.VaR(0.93), 1e-6, "cumulative point maps to its support")
	assert.InDelta(t, 100.0, loss.VaR(0.955), 1e-6, "midway between 0.93 and 0.98")
	assert.InDelta(t, 250.0, loss.VaR(1.0), 1e-9)
}

func TestLossDistribution_VaRFlatSegmentIsConservative(t *testing.T) {
	// a zero-probability middle bin creates a flat CDF segment
	impact := mustImpact(t, []float64{0, 100, 200, 300}, []float64{0.1, 0.0, 0.02})
	loss := NewLossDistribution(impact, 1.0)

	// supports: 0 (0.88), 50 (0.1), 250 (0.02); zero-mass bins never become
	// supports, so the quantile at cum 0.98 stays at 50 and anything above
	// interpolates towards 250.
	assert.InDelta(t, 50.0, loss.VaR(0.98), 1e-6)
	assert.Greater(t, loss.VaR(0.981), 55.0)
}

func TestLossDistribution_StdDev(t *testing.T) {
	impact := mustImpact(t, []float64{0, 100}, []float64{0.5})
	loss := NewLossDistribution(impact, 1.0)

	// two-point distribution: 0 and 50, each with probability 0.5
	assert.InDelta(t, 25.0, loss.Mean(), 1e-12)
	assert.InDelta(t, 25.0, loss.StdDev(), 1e-12)
}

func TestConvolve(t *testing.T) {
	a := NewLossDistribution(mustImpact(t, []float64{0, 100}, []float64{0.5}), 1.0)
	b := NewLossDistribution(mustImpact(t, []float64{0, 200}, []float64{0.5}), 1.0)

	sum := Convolve(a, b)

	// supports 0, 50, 100, 150 with masses 0.25 each
	assert.InDelta(t, 0.25, sum.CDF(0), 1e-12)
	assert.InDelta(t, 0.5, sum.CDF(50), 1e-12)
	assert.InDelta(t, 0.75, sum.CDF(100), 1e-12)
	assert.InDelta(t, 1.0, sum.CDF(150), 1e-12)
	assert.InDelta(t, a.Mean()+b.Mean(), sum.Mean(), 1e-12)
}

func TestOEPAndAEP(t *testing.T) {
	a := NewLossDistribution(mustImpact(t, []float64{0, 100}, []float64{0.1}), 1.0)
	b := NewLossDistribution(mustImpact(t, []float64{0, 100}, []float64{0.2}), 1.0)
	losses := []LossDistribution{a, b}

	// P(max > 0) = 1 - 0.9*0.8
	assert.InDelta(t, 1-0.9*0.8, OEP(losses, 0), 1e-12)
	// only one hazard can push the maximum above 50
	assert.InDelta(t, 1-0.9*0.8, OEP(losses, 49), 1e-12)
	// nothing exceeds the largest support
	assert.InDelta(t, 0.0, OEP(losses, 50), 1e-12)

	// aggregate: both hazards striking sums to 100
	assert.InDelta(t, 1-0.9*0.8, AEP(losses, 0), 1e-12)
	assert.InDelta(t, 0.1*0.2, AEP(losses, 50), 1e-12)
	assert.InDelta(t, 0.0, AEP(losses, 100), 1e-12)

	// AEP dominates OEP at every threshold
	for _, threshold := range ExceedanceThresholds(losses) {
		assert.GreaterOrEqual(t, AEP(losses, threshold)+1e-12, OEP(losses, threshold))
	}
}

func TestOEP_Empty(t *testing.T) {
	assert.Equal(t, 0.0, OEP(nil, 100))
	assert.Equal(t, 0.0, AEP(nil, 100))
}
