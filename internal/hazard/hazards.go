// Package hazard defines the hazard taxonomy, the hazard data request/response
// contract, and the batching dispatcher that routes deduplicated requests to a
// hazard data provider.
package hazard

// Kind distinguishes acute hazards (events with an intensity/return-period
// structure) from chronic hazards (shifts in a climate parameter).
type Kind string

const (
	KindAcute   Kind = "acute"
	KindChronic Kind = "chronic"
)

// Type identifies a hazard type.
type Type string

const (
	RiverineInundation Type = "riverine_inundation"
	CoastalInundation  Type = "coastal_inundation"
	Wind               Type = "wind"
	ChronicHeat        Type = "chronic_heat"
	Drought            Type = "drought"
)

// KindOf returns the kind of a hazard type. Unknown types are treated as
// acute, the common case.
func KindOf(t Type) Kind {
	switch t {
	case ChronicHeat, Drought:
		return KindChronic
	default:
		return KindAcute
	}
}

// ScenarioHistorical is the baseline scenario identifier. Projection scenarios
// use their dataset identifiers, e.g. "rcp8p5" or "ssp585".
const ScenarioHistorical = "historical"
