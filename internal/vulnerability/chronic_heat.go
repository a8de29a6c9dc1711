package vulnerability

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/windward/internal/distrib"
	"github.com/aristath/windward/internal/hazard"
	"github.com/aristath/windward/internal/portfolio"
)

// IndicatorDegreeDays is the chronic heat indicator: annual degree days above
// the mean temperature.
const IndicatorDegreeDays = "mean_degree_days_above_32c"

// ChronicHeatModel estimates labour disruption from chronic heat. It is an
// ImpactModel: chronic hazards have no event/return-period structure, so the
// impact distribution is built directly from the shift in degree days between
// the baseline and the scenario.
type ChronicHeatModel struct {
	// TotalLabourHours is the annual hours worked at the asset.
	TotalLabourHours float64
	// TimeLostPerDegreeDay is the mean hours lost per degree day.
	TimeLostPerDegreeDay float64
	// TimeLostPerDegreeDayStd is its standard error.
	TimeLostPerDegreeDayStd float64
}

// NewChronicHeatModel creates the model with default labour parameters.
func NewChronicHeatModel() *ChronicHeatModel {
	return &ChronicHeatModel{
		TotalLabourHours:        2160, // 27 eight-hour days per month over a 10 month season
		TimeLostPerDegreeDay:    4.671,
		TimeLostPerDegreeDayStd: 2.614,
	}
}

// HazardType implements Model.
func (m *ChronicHeatModel) HazardType() hazard.Type { return hazard.ChronicHeat }

// AssetTypes implements Model.
func (m *ChronicHeatModel) AssetTypes() []portfolio.AssetType {
	return []portfolio.AssetType{portfolio.AssetTypeIndustrial}
}

// DataRequests implements Model: the baseline and scenario degree-day
// parameters at the asset location.
func (m *ChronicHeatModel) DataRequests(asset *portfolio.Asset, scenario string, year int) []hazard.DataRequest {
	return []hazard.DataRequest{
		hazard.NewDataRequest(hazard.ChronicHeat, IndicatorDegreeDays, hazard.ScenarioHistorical, baselineYear, asset.Latitude, asset.Longitude),
		hazard.NewDataRequest(hazard.ChronicHeat, IndicatorDegreeDays, scenario, year, asset.Latitude, asset.Longitude),
	}
}

// Impact implements ImpactModel: fractional labour loss is normally
// distributed with mean and deviation proportional to the degree-day shift,
// discretized onto a graduated impact grid.
func (m *ChronicHeatModel) Impact(asset *portfolio.Asset, responses []*hazard.DataResponse) (*distrib.ImpactDistrib, error) {
	if len(responses) != 2 {
		return nil, fmt.Errorf("chronic heat model expects 2 responses, got %d", len(responses))
	}
	baseline, scenario := responses[0], responses[1]

	deltaDegreeDays := scenario.Parameter - baseline.Parameter
	if deltaDegreeDays < 0 {
		deltaDegreeDays = 0
	}

	lossMean := deltaDegreeDays * m.TimeLostPerDegreeDay / m.TotalLabourHours
	lossStd := deltaDegreeDays * m.TimeLostPerDegreeDayStd / m.TotalLabourHours

	edges := disruptionBinEdges()
	probs := make([]float64, len(edges)-1)

	if lossStd < 1e-12 {
		probs[binIndexFor(clamp01(lossMean), edges)] = 1.0
		return distrib.NewImpactDistrib(hazard.ChronicHeat, edges, probs)
	}

	dist := distuv.Normal{Mu: lossMean, Sigma: lossStd}
	prev := dist.CDF(edges[0])
	total := 0.0
	for i := range probs {
		probs[i] = dist.CDF(edges[i+1]) - prev
		prev = dist.CDF(edges[i+1])
		total += probs[i]
	}
	// the grid spans [0, 1]; mass outside it belongs to the boundary bins
	probs[0] += math.Max(0, dist.CDF(edges[0]))
	probs[len(probs)-1] += math.Max(0, 1.0-dist.CDF(edges[len(edges)-1]))

	return distrib.NewImpactDistrib(hazard.ChronicHeat, edges, probs)
}

// disruptionBinEdges returns a grid that is fine near zero, where most of the
// disruption mass sits, and coarse towards total loss.
func disruptionBinEdges() []float64 {
	edges := make([]float64, 0, 30)
	edges = append(edges, 0)
	for v := 0.001; v < 0.01; v += 0.001 {
		edges = append(edges, v)
	}
	for v := 0.01; v < 0.1; v += 0.01 {
		edges = append(edges, v)
	}
	for v := 0.1; v <= 0.95; v += 0.1 {
		edges = append(edges, v)
	}
	edges = append(edges, 1.0)
	return edges
}
