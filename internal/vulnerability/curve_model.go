package vulnerability

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/windward/internal/distrib"
	"github.com/aristath/windward/internal/hazard"
	"github.com/aristath/windward/internal/portfolio"
)

// DamageCurve describes conditional impact as a function of hazard intensity:
// at each sampled intensity, the mean and standard deviation of the impact
// fraction. Mean and standard deviation are linearly interpolated between
// samples.
type DamageCurve struct {
	Intensities []float64
	MeanImpact  []float64
	StdImpact   []float64
}

// MeanAt returns the interpolated mean impact at an intensity.
func (c DamageCurve) MeanAt(intensity float64) float64 {
	return interp(intensity, c.Intensities, c.MeanImpact)
}

// StdAt returns the interpolated impact standard deviation at an intensity.
func (c DamageCurve) StdAt(intensity float64) float64 {
	return interp(intensity, c.Intensities, c.StdImpact)
}

// interp is piecewise-linear interpolation with flat extrapolation, xs sorted
// increasing.
func interp(x float64, xs, ys []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[len(xs)-1] {
		return ys[len(ys)-1]
	}
	for i := 1; i < len(xs); i++ {
		if x <= xs[i] {
			t := (x - xs[i-1]) / (xs[i] - xs[i-1])
			return ys[i-1] + t*(ys[i]-ys[i-1])
		}
	}
	return ys[len(ys)-1]
}

// CurveModel is a vulnerability-only model: it supplies a damage curve and an
// impact bin grid, and delegates construction of the hazard event distribution
// to the shared EventDistribFromResponse routine. The conditional impact in
// each intensity bin is beta-distributed with the curve's interpolated mean
// and standard deviation, pinned to a point mass at the endpoints.
type CurveModel struct {
	Hazard         hazard.Type
	Assets         []portfolio.AssetType
	Indicator      string
	Units          string
	ImpactBinEdges []float64
	Curve          DamageCurve

	// CurveFor optionally selects a damage curve per asset (e.g. by regional
	// tag). When nil every asset uses Curve.
	CurveFor func(asset *portfolio.Asset) (DamageCurve, error)
}

// HazardType implements Model.
func (m *CurveModel) HazardType() hazard.Type { return m.Hazard }

// AssetTypes implements Model.
func (m *CurveModel) AssetTypes() []portfolio.AssetType {
	return append([]portfolio.AssetType(nil), m.Assets...)
}

// DataRequests implements Model: one indicator lookup at the asset location.
func (m *CurveModel) DataRequests(asset *portfolio.Asset, scenario string, year int) []hazard.DataRequest {
	return []hazard.DataRequest{
		hazard.NewDataRequest(m.Hazard, m.Indicator, scenario, year, asset.Latitude, asset.Longitude),
	}
}

// Distributions implements AcuteModel. The vulnerability matrix is built over
// exactly the intensity bins of the event distribution, so the pair is aligned
// by construction.
func (m *CurveModel) Distributions(asset *portfolio.Asset, responses []*hazard.DataResponse) (*distrib.HazardEventDistrib, *distrib.VulnerabilityDistrib, error) {
	if len(responses) != 1 {
		return nil, nil, fmt.Errorf("curve model expects 1 response, got %d", len(responses))
	}
	event, err := EventDistribFromResponse(m.Hazard, responses[0], m.Units)
	if err != nil {
		return nil, nil, err
	}

	curve := m.Curve
	if m.CurveFor != nil {
		curve, err = m.CurveFor(asset)
		if err != nil {
			return nil, nil, err
		}
	}

	intensityEdges := event.IntensityBinEdges()
	n := len(intensityEdges) - 1
	matrix := make([][]float64, n)
	for i := 0; i < n; i++ {
		mid := 0.5 * (intensityEdges[i] + intensityEdges[i+1])
		matrix[i] = conditionalImpactRow(curve.MeanAt(mid), curve.StdAt(mid), m.ImpactBinEdges)
	}

	vuln, err := distrib.NewVulnerabilityDistrib(m.Hazard, intensityEdges, m.ImpactBinEdges, matrix)
	if err != nil {
		return nil, nil, err
	}
	return event, vuln, nil
}

// conditionalImpactRow discretizes the conditional impact distribution at one
// intensity onto the impact bin grid. Zero standard deviation or an endpoint
// mean degenerates to a point mass in the bin containing the mean.
func conditionalImpactRow(mean, std float64, impactEdges []float64) []float64 {
	bins := len(impactEdges) - 1
	row := make([]float64, bins)

	if std <= 0 || mean <= 0 || mean >= 1 {
		row[binIndexFor(clamp01(mean), impactEdges)] = 1.0
		return row
	}

	// moment-matched beta distribution
	cv := std / mean
	alpha := (1-mean)/(cv*cv) - mean
	beta := alpha * (1 - mean) / mean
	if alpha <= 0 || beta <= 0 {
		row[binIndexFor(mean, impactEdges)] = 1.0
		return row
	}
	dist := distuv.Beta{Alpha: alpha, Beta: beta}

	prev := dist.CDF(impactEdges[0])
	total := 0.0
	for j := 0; j < bins; j++ {
		next := dist.CDF(impactEdges[j+1])
		row[j] = next - prev
		total += row[j]
		prev = next
	}
	// fold truncation residue (mass outside the grid) into the closest bins
	if residue := 1.0 - total; residue > 0 {
		row[0] += dist.CDF(impactEdges[0])
		row[bins-1] += 1.0 - dist.CDF(impactEdges[bins])
	}
	return row
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// binIndexFor returns the index of the bin containing x, with x above the last
// edge assigned to the last bin.
func binIndexFor(x float64, edges []float64) int {
	for i := 1; i < len(edges)-1; i++ {
		if x < edges[i] {
			return i - 1
		}
	}
	return len(edges) - 2
}
