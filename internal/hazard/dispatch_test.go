package hazard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider records calls and serves canned curves, failing configured
// scenarios.
type stubProvider struct {
	mu           sync.Mutex
	calls        [][]DataRequest
	failScenario string
}

func (s *stubProvider) GetHazardData(_ context.Context, requests []DataRequest) (map[DataRequest]DataResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, requests)
	s.mu.Unlock()

	if len(requests) > 0 && requests[0].Scenario == s.failScenario {
		return nil, errors.New("store offline")
	}
	responses := make(map[DataRequest]DataResponse, len(requests))
	for _, req := range requests {
		responses[req] = DataResponse{
			ReturnPeriods: []float64{10, 100},
			Intensities:   []float64{req.Latitude, req.Latitude + 1},
			Units:         UnitMetres,
		}
	}
	return responses, nil
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func TestFetch_DeduplicatesIdenticalKeys(t *testing.T) {
	provider := &stubProvider{}
	dispatcher := NewDispatcher(provider, 2, zerolog.Nop())

	// Two assets at the same location issue identical request keys.
	reqA := NewDataRequest(RiverineInundation, "flood_depth", "rcp8p5", 2050, 52.0, 4.1)
	reqB := NewDataRequest(RiverineInundation, "flood_depth", "rcp8p5", 2050, 52.0, 4.1)
	require.Equal(t, reqA, reqB)

	results := dispatcher.Fetch(context.Background(), []DataRequest{reqA, reqB})

	assert.Equal(t, 1, provider.callCount(), "identical keys must be fetched once")
	require.Len(t, results, 1)
	require.False(t, results[reqA].Failed())
	assert.Equal(t, results[reqA].Response, results[reqB].Response)
}

func TestFetch_CoordinateNoiseIsNotEquality(t *testing.T) {
	// Differences above the normalization precision produce distinct keys.
	reqA := NewDataRequest(RiverineInundation, "flood_depth", "rcp8p5", 2050, 52.0001, 4.1)
	reqB := NewDataRequest(RiverineInundation, "flood_depth", "rcp8p5", 2050, 52.0002, 4.1)
	assert.NotEqual(t, reqA, reqB)

	// Sub-precision noise normalizes away.
	reqC := NewDataRequest(RiverineInundation, "flood_depth", "rcp8p5", 2050, 52.000001, 4.1)
	reqD := NewDataRequest(RiverineInundation, "flood_depth", "rcp8p5", 2050, 52.000004, 4.1)
	assert.Equal(t, reqC, reqD)
}

func TestFetch_GroupsByDataSource(t *testing.T) {
	provider := &stubProvider{}
	dispatcher := NewDispatcher(provider, 2, zerolog.Nop())

	requests := []DataRequest{
		NewDataRequest(RiverineInundation, "flood_depth", "rcp8p5", 2050, 52.0, 4.1),
		NewDataRequest(RiverineInundation, "flood_depth", "rcp8p5", 2050, 48.8, 2.3),
		NewDataRequest(CoastalInundation, "flood_depth", "rcp8p5", 2050, 52.0, 4.1),
	}

	results := dispatcher.Fetch(context.Background(), requests)

	require.Len(t, results, 3)
	assert.Equal(t, 2, provider.callCount(), "one retrieval per request group")
	for _, req := range requests {
		assert.False(t, results[req].Failed())
	}
}

func TestFetch_FailureIsolation(t *testing.T) {
	provider := &stubProvider{failScenario: "rcp8p5"}
	dispatcher := NewDispatcher(provider, 4, zerolog.Nop())

	failing := NewDataRequest(RiverineInundation, "flood_depth", "rcp8p5", 2050, 52.0, 4.1)
	healthy := NewDataRequest(RiverineInundation, "flood_depth", ScenarioHistorical, 1980, 52.0, 4.1)

	results := dispatcher.Fetch(context.Background(), []DataRequest{failing, healthy})

	require.Len(t, results, 2)
	assert.True(t, results[failing].Failed())
	assert.ErrorIs(t, results[failing].Err, ErrDataUnavailable)
	require.False(t, results[healthy].Failed(), "a failed group must not abort other groups")
	assert.Equal(t, UnitMetres, results[healthy].Response.Units)
}

func TestFetch_MissingKeyFromProvider(t *testing.T) {
	dispatcher := NewDispatcher(&droppingProvider{}, 1, zerolog.Nop())

	req := NewDataRequest(Wind, "max_speed", ScenarioHistorical, 2005, 30.0, -80.0)
	results := dispatcher.Fetch(context.Background(), []DataRequest{req})

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[req].Err, ErrDataUnavailable)
}

// droppingProvider succeeds but omits every requested key.
type droppingProvider struct{}

func (droppingProvider) GetHazardData(context.Context, []DataRequest) (map[DataRequest]DataResponse, error) {
	return map[DataRequest]DataResponse{}, nil
}
