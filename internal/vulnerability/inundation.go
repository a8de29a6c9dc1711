package vulnerability

import (
	"fmt"

	"github.com/aristath/windward/internal/distrib"
	"github.com/aristath/windward/internal/hazard"
	"github.com/aristath/windward/internal/portfolio"
	"github.com/aristath/windward/pkg/curves"
)

// IndicatorFloodDepth is the hazard indicator used by the inundation models.
const IndicatorFloodDepth = "flood_depth"

// defaultImpactBinEdges is the damage-fraction grid shared by the real estate
// inundation models.
var defaultImpactBinEdges = []float64{0, 0.01, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}

// realEstateDepthDamage is a global depth/damage function for residential and
// commercial buildings: mean damage fraction and its standard deviation by
// inundation depth in metres.
var realEstateDepthDamage = DamageCurve{
	Intensities: []float64{0, 0.01, 0.5, 1.0, 1.5, 2.0, 3.0, 4.0, 5.0, 6.0},
	MeanImpact:  []float64{0, 0.20, 0.44, 0.58, 0.68, 0.78, 0.85, 0.92, 0.96, 1.0},
	StdImpact:   []float64{0, 0.17, 0.14, 0.14, 0.17, 0.14, 0.13, 0.10, 0.06, 0},
}

// NewRealEstateRiverineInundationModel creates the riverine inundation model
// for real estate assets.
func NewRealEstateRiverineInundationModel() *CurveModel {
	return &CurveModel{
		Hazard:         hazard.RiverineInundation,
		Assets:         []portfolio.AssetType{portfolio.AssetTypeRealEstate, portfolio.AssetTypeIndustrial},
		Indicator:      IndicatorFloodDepth,
		Units:          hazard.UnitMetres,
		ImpactBinEdges: append([]float64(nil), defaultImpactBinEdges...),
		Curve:          realEstateDepthDamage,
	}
}

// NewRealEstateCoastalInundationModel creates the coastal inundation model for
// real estate assets. It reuses the riverine depth/damage function, the common
// practice where no coastal-specific curve exists.
func NewRealEstateCoastalInundationModel() *CurveModel {
	return &CurveModel{
		Hazard:         hazard.CoastalInundation,
		Assets:         []portfolio.AssetType{portfolio.AssetTypeRealEstate},
		Indicator:      IndicatorFloodDepth,
		Units:          hazard.UnitMetres,
		ImpactBinEdges: append([]float64(nil), defaultImpactBinEdges...),
		Curve:          realEstateDepthDamage,
	}
}

// PowerGeneratingInundationModel models riverine flood disruption of power
// generating assets. It constructs the event and vulnerability distributions
// jointly: the flood protection level, read off the asset's historical
// exceedance curve, determines which intensity bins produce no disruption.
type PowerGeneratingInundationModel struct {
	// DefaultProtectionReturnPeriod applies to assets without an explicit
	// protection level.
	DefaultProtectionReturnPeriod float64

	// depth (m) to outage (days) conversion
	outageDepths []float64
	outageDays   []float64
}

// DefaultFloodProtectionYears is the assumed engineered flood protection for
// power generating assets without site data.
const DefaultFloodProtectionYears = 250.0

// baselineYear is the reference year for historical flood depth curves.
const baselineYear = 1980

// NewPowerGeneratingInundationModel creates the model with its default outage
// curve.
func NewPowerGeneratingInundationModel() *PowerGeneratingInundationModel {
	return &PowerGeneratingInundationModel{
		DefaultProtectionReturnPeriod: DefaultFloodProtectionYears,
		outageDepths:                  []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 1.0},
		outageDays:                    []float64{0, 1, 2, 7, 14, 30, 60, 180, 365},
	}
}

// HazardType implements Model.
func (m *PowerGeneratingInundationModel) HazardType() hazard.Type { return hazard.RiverineInundation }

// AssetTypes implements Model.
func (m *PowerGeneratingInundationModel) AssetTypes() []portfolio.AssetType {
	return []portfolio.AssetType{portfolio.AssetTypePowerGenerating}
}

// DataRequests implements Model: the historical baseline curve (for the
// protection depth) plus the requested scenario curve.
func (m *PowerGeneratingInundationModel) DataRequests(asset *portfolio.Asset, scenario string, year int) []hazard.DataRequest {
	return []hazard.DataRequest{
		hazard.NewDataRequest(hazard.RiverineInundation, IndicatorFloodDepth, hazard.ScenarioHistorical, baselineYear, asset.Latitude, asset.Longitude),
		hazard.NewDataRequest(hazard.RiverineInundation, IndicatorFloodDepth, scenario, year, asset.Latitude, asset.Longitude),
	}
}

// Distributions implements AcuteModel.
func (m *PowerGeneratingInundationModel) Distributions(asset *portfolio.Asset, responses []*hazard.DataResponse) (*distrib.HazardEventDistrib, *distrib.VulnerabilityDistrib, error) {
	if len(responses) != 2 {
		return nil, nil, fmt.Errorf("power generating inundation model expects 2 responses, got %d", len(responses))
	}
	histo, future := responses[0], responses[1]

	protectionRP := asset.ProtectionReturnPeriod
	if protectionRP <= 0 {
		protectionRP = m.DefaultProtectionReturnPeriod
	}

	histoDepths, err := hazard.ConvertSlice(histo.Intensities, histo.Units, hazard.UnitMetres, hazard.Convert)
	if err != nil {
		return nil, nil, err
	}
	histoCurve, err := curves.FromReturnPeriods(histo.ReturnPeriods, histoDepths)
	if err != nil {
		return nil, nil, fmt.Errorf("historical curve: %w", err)
	}
	// the protection depth is the inundation depth at the protection return
	// period at the asset location
	protectionDepth := histoCurve.Value(1.0 / protectionRP)

	futureDepths, err := hazard.ConvertSlice(future.Intensities, future.Units, hazard.UnitMetres, hazard.Convert)
	if err != nil {
		return nil, nil, err
	}
	futureCurve, err := curves.FromReturnPeriods(future.ReturnPeriods, futureDepths)
	if err != nil {
		return nil, nil, fmt.Errorf("scenario curve: %w", err)
	}
	// align a bin edge with the protection depth so no bin straddles it
	futureCurve = futureCurve.AddValuePoint(protectionDepth)

	depthEdges, probs := futureCurve.ProbabilityBins()

	// disruption fraction at each depth edge, preceded by a zero-width bin
	// at zero disruption so protected occurrences carry exactly no loss
	impactEdges := make([]float64, 0, len(depthEdges)+2)
	impactEdges = append(impactEdges, 0, 0)
	for _, d := range depthEdges {
		impactEdges = append(impactEdges, interp(d, m.outageDepths, m.outageDays)/365.0)
	}

	n := len(probs)
	matrix := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(impactEdges)-1)
		if depthEdges[i+1] <= protectionDepth {
			// protected: all mass in the zero-width zero-disruption bin
			row[0] = 1.0
		} else {
			row[i+2] = 1.0
		}
		matrix[i] = row
	}

	event, err := distrib.NewHazardEventDistrib(hazard.RiverineInundation, depthEdges, probs)
	if err != nil {
		return nil, nil, err
	}
	vuln, err := distrib.NewVulnerabilityDistrib(hazard.RiverineInundation, depthEdges, impactEdges, matrix)
	if err != nil {
		return nil, nil, err
	}
	return event, vuln, nil
}
