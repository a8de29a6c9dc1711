package risk

import "github.com/aristath/windward/internal/hazard"

// CurvePoint is one point of an exceedance probability curve: the annual
// probability that the loss exceeds the threshold.
type CurvePoint struct {
	Loss        float64 `json:"loss"`
	Probability float64 `json:"probability"`
}

// HazardMeasures are the per-hazard risk measures for one asset.
type HazardMeasures struct {
	Hazard hazard.Type `json:"hazard"`
	AEL    float64     `json:"ael"`
	StdDev float64     `json:"std_dev"`
}

// AssetReport is the calculation outcome for a single asset. Failed assets
// carry the failure reason and zero measures; they are never dropped from the
// portfolio report.
type AssetReport struct {
	AssetID string `json:"asset_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	AEL      float64          `json:"ael"`
	StdDev   float64          `json:"std_dev"`
	VaR95    float64          `json:"var_95"`
	VaR99    float64          `json:"var_99"`
	ByHazard []HazardMeasures `json:"by_hazard,omitempty"`
	OEP      []CurvePoint     `json:"oep,omitempty"`
	AEP      []CurvePoint     `json:"aep,omitempty"`
}

// PortfolioReport is the aggregate outcome of one calculation run. Succeeded
// and Failed counts are always explicit; TotalAEL covers succeeded assets
// only and must be read together with Failed.
type PortfolioReport struct {
	RunID    string        `json:"run_id"`
	Scenario string        `json:"scenario"`
	Year     int           `json:"year"`
	Assets   []AssetReport `json:"assets"`

	TotalAEL  float64 `json:"total_ael"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
}
