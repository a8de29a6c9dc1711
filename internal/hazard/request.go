package hazard

import (
	"errors"
	"fmt"
	"math"
)

// ErrDataUnavailable indicates a declared request could not be resolved by the
// provider.
var ErrDataUnavailable = errors.New("hazard data unavailable")

// CoordinatePrecision is the number of decimal places to which request
// coordinates are rounded. Two requests for effectively the same location must
// compare equal, so coordinates are normalized at construction rather than
// compared within a tolerance. Five decimal places is roughly one metre.
const CoordinatePrecision = 5

// DataRequest is the immutable key for a hazard data lookup. Equality is value
// equality over the declared fields only, which makes the struct directly
// usable as a map key for deduplication.
type DataRequest struct {
	Hazard    Type
	Indicator string // indicator identifier, e.g. "flood_depth", "max_speed"
	Scenario  string
	Year      int
	Latitude  float64 // rounded to CoordinatePrecision
	Longitude float64 // rounded to CoordinatePrecision

	// Buffer is an optional radius in whole metres around the point over
	// which the provider aggregates, 0 for a point lookup. Part of the key:
	// the same location at different buffers is different data.
	Buffer int
}

// NewDataRequest creates a point request with normalized coordinates.
func NewDataRequest(hazard Type, indicator, scenario string, year int, latitude, longitude float64) DataRequest {
	return DataRequest{
		Hazard:    hazard,
		Indicator: indicator,
		Scenario:  scenario,
		Year:      year,
		Latitude:  roundCoord(latitude),
		Longitude: roundCoord(longitude),
	}
}

// WithBuffer returns a copy of the request with the aggregation radius set.
func (r DataRequest) WithBuffer(metres int) DataRequest {
	r.Buffer = metres
	return r
}

func roundCoord(c float64) float64 {
	scale := math.Pow10(CoordinatePrecision)
	return math.Round(c*scale) / scale
}

// GroupKey identifies the underlying data source for a request. Requests with
// the same group key are batched into a single provider retrieval.
type GroupKey struct {
	Hazard    Type
	Indicator string
	Scenario  string
	Year      int
}

// Group returns the batching key for the request.
func (r DataRequest) Group() GroupKey {
	return GroupKey{Hazard: r.Hazard, Indicator: r.Indicator, Scenario: r.Scenario, Year: r.Year}
}

func (r DataRequest) String() string {
	s := fmt.Sprintf("%s/%s %s/%d (%.5f, %.5f)", r.Hazard, r.Indicator, r.Scenario, r.Year, r.Latitude, r.Longitude)
	if r.Buffer > 0 {
		s += fmt.Sprintf(" buffer=%dm", r.Buffer)
	}
	return s
}

// DataResponse carries the hazard data for a single request. For acute hazards
// ReturnPeriods and Intensities describe the exceedance curve at the requested
// location; for chronic hazards Parameter holds the scalar indicator value.
// Units names the physical units of the intensities or parameter so a model
// can convert before building distributions.
type DataResponse struct {
	ReturnPeriods []float64
	Intensities   []float64
	Parameter     float64
	Units         string
}

// Result is a response or a failure for one request key. Exactly one of
// Response and Err is set.
type Result struct {
	Response *DataResponse
	Err      error
}

// Failed reports whether the lookup failed.
func (r Result) Failed() bool { return r.Err != nil }
