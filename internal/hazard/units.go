package hazard

import "fmt"

// Unit identifiers used in DataResponse.Units.
const (
	UnitMetres          = "m"
	UnitCentimetres     = "cm"
	UnitFeet            = "ft"
	UnitInches          = "in"
	UnitMetresPerSecond = "m/s"
	UnitKilometresPerHr = "km/h"
	UnitDegreeDays      = "degree_days"
)

const (
	feetPerMetre           = 3.280839895
	inchesPerMetre         = 39.37007874
	centimetresPerMetre    = 100.0
	kilometresPerHourPerMS = 3.6
)

// ConvertLength converts a length intensity between supported units.
func ConvertLength(value float64, from, to string) (float64, error) {
	if from == to {
		return value, nil
	}
	metres, err := lengthToMetres(value, from)
	if err != nil {
		return 0, err
	}
	switch to {
	case UnitMetres:
		return metres, nil
	case UnitCentimetres:
		return metres * centimetresPerMetre, nil
	case UnitFeet:
		return metres * feetPerMetre, nil
	case UnitInches:
		return metres * inchesPerMetre, nil
	default:
		return 0, fmt.Errorf("unsupported length unit %q", to)
	}
}

func lengthToMetres(value float64, from string) (float64, error) {
	switch from {
	case UnitMetres:
		return value, nil
	case UnitCentimetres:
		return value / centimetresPerMetre, nil
	case UnitFeet:
		return value / feetPerMetre, nil
	case UnitInches:
		return value / inchesPerMetre, nil
	default:
		return 0, fmt.Errorf("unsupported length unit %q", from)
	}
}

// ConvertSpeed converts a speed intensity between supported units.
func ConvertSpeed(value float64, from, to string) (float64, error) {
	if from == to {
		return value, nil
	}
	var ms float64
	switch from {
	case UnitMetresPerSecond:
		ms = value
	case UnitKilometresPerHr:
		ms = value / kilometresPerHourPerMS
	default:
		return 0, fmt.Errorf("unsupported speed unit %q", from)
	}
	switch to {
	case UnitMetresPerSecond:
		return ms, nil
	case UnitKilometresPerHr:
		return ms * kilometresPerHourPerMS, nil
	default:
		return 0, fmt.Errorf("unsupported speed unit %q", to)
	}
}

// Convert converts a value between units of the same family (length or
// speed). Identical units convert to themselves, including unknown ones.
func Convert(value float64, from, to string) (float64, error) {
	if from == to {
		return value, nil
	}
	switch from {
	case UnitMetres, UnitCentimetres, UnitFeet, UnitInches:
		return ConvertLength(value, from, to)
	case UnitMetresPerSecond, UnitKilometresPerHr:
		return ConvertSpeed(value, from, to)
	default:
		return 0, fmt.Errorf("cannot convert %q to %q", from, to)
	}
}

// ConvertSlice converts every intensity in a slice using the given converter.
func ConvertSlice(values []float64, from, to string, convert func(float64, string, string) (float64, error)) ([]float64, error) {
	if from == to {
		return values, nil
	}
	out := make([]float64, len(values))
	for i, v := range values {
		c, err := convert(v, from, to)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}
