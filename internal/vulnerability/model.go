// Package vulnerability defines the two-phase vulnerability model protocol
// and the registry that selects a model per (hazard type, asset type).
//
// The protocol separates data declaration from distribution construction:
// every model first declares the hazard data it needs, so a portfolio
// calculation can issue one batched set of requests instead of one round trip
// per asset. Both phases are pure; models never perform I/O.
package vulnerability

import (
	"fmt"

	"github.com/aristath/windward/internal/distrib"
	"github.com/aristath/windward/internal/hazard"
	"github.com/aristath/windward/internal/portfolio"
	"github.com/aristath/windward/pkg/curves"
)

// Model is the common surface of all vulnerability models.
type Model interface {
	// HazardType returns the hazard type the model covers.
	HazardType() hazard.Type

	// AssetTypes returns the asset types the model applies to.
	AssetTypes() []portfolio.AssetType

	// DataRequests declares exactly the hazard data the model needs for the
	// asset. Pure and side-effect free: no I/O.
	DataRequests(asset *portfolio.Asset, scenario string, year int) []hazard.DataRequest
}

// AcuteModel builds the hazard event distribution and the vulnerability
// distribution for an asset. Responses arrive in the order the requests were
// declared. The two distributions share intensity bin edges, which is why
// models that need special alignment construct both jointly.
type AcuteModel interface {
	Model
	Distributions(asset *portfolio.Asset, responses []*hazard.DataResponse) (*distrib.HazardEventDistrib, *distrib.VulnerabilityDistrib, error)
}

// ImpactModel builds an impact distribution directly, for models whose impact
// does not factor through an intensity-binned vulnerability matrix (chronic
// hazards in particular).
type ImpactModel interface {
	Model
	Impact(asset *portfolio.Asset, responses []*hazard.DataResponse) (*distrib.ImpactDistrib, error)
}

// EventDistribFromResponse is the shared default routine turning a single
// acute hazard data response into a hazard event distribution: the response's
// exceedance curve is converted to probability bins after unit conversion.
// Vulnerability-only models compose with this instead of re-implementing the
// hazard side.
func EventDistribFromResponse(hazardType hazard.Type, resp *hazard.DataResponse, wantUnits string) (*distrib.HazardEventDistrib, error) {
	intensities, err := hazard.ConvertSlice(resp.Intensities, resp.Units, wantUnits, hazard.Convert)
	if err != nil {
		return nil, fmt.Errorf("converting hazard intensities: %w", err)
	}
	curve, err := curves.FromReturnPeriods(resp.ReturnPeriods, intensities)
	if err != nil {
		return nil, fmt.Errorf("building exceedance curve: %w", err)
	}
	edges, probs := curve.ProbabilityBins()
	return distrib.NewHazardEventDistrib(hazardType, edges, probs)
}
