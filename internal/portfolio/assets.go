// Package portfolio defines the asset model consumed by the risk kernel.
package portfolio

// AssetType tags an asset for vulnerability model selection.
type AssetType string

const (
	AssetTypeRealEstate      AssetType = "real_estate"
	AssetTypePowerGenerating AssetType = "power_generating"
	AssetTypeIndustrial      AssetType = "industrial_activity"
)

// Asset is a physical asset at a location. Value is the financial exposure the
// impact fractions are applied to: total insurable value for damage models,
// attributable annual revenue for disruption models.
type Asset struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Type      AssetType `json:"type"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Value     float64   `json:"value"`
	Currency  string    `json:"currency,omitempty"`

	// Location is a coarse regional tag used by vulnerability curve lookup,
	// e.g. "Europe" or "Asia".
	Location string `json:"location,omitempty"`

	// ProtectionReturnPeriod is the flood protection level in years for
	// assets that have engineered defenses. Zero means unprotected.
	ProtectionReturnPeriod float64 `json:"protection_return_period,omitempty"`
}

// Portfolio is a collection of assets for a single calculation.
type Portfolio struct {
	Assets []Asset
}

// TotalValue sums the value of all assets.
func (p *Portfolio) TotalValue() float64 {
	total := 0.0
	for _, a := range p.Assets {
		total += a.Value
	}
	return total
}
