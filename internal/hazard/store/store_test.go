package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/windward/internal/database"
	"github.com/aristath/windward/internal/hazard"
)

func testDB(t *testing.T, profile database.DatabaseProfile, name string) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func floodRequest(lat, lon float64) hazard.DataRequest {
	return hazard.NewDataRequest(hazard.RiverineInundation, "flood_depth", "rcp8p5", 2050, lat, lon)
}

func floodResponse() hazard.DataResponse {
	return hazard.DataResponse{
		ReturnPeriods: []float64{10, 100, 1000},
		Intensities:   []float64{0.3, 0.9, 1.8},
		Units:         hazard.UnitMetres,
	}
}

func TestStore_PutAndGet(t *testing.T) {
	store, err := NewStore(testDB(t, database.ProfileStandard, "hazard"), zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	req := floodRequest(48.2, 16.4)
	require.NoError(t, store.PutCurve(ctx, req, floodResponse()))

	out, err := store.GetHazardData(ctx, []hazard.DataRequest{req})
	require.NoError(t, err)
	require.Contains(t, out, req)
	assert.Equal(t, floodResponse(), out[req])

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_PutCurveBatch(t *testing.T) {
	store, err := NewStore(testDB(t, database.ProfileStandard, "hazard"), zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	reqA, reqB := floodRequest(48.2, 16.4), floodRequest(52.5, 13.4)
	require.NoError(t, store.PutCurveBatch(ctx, []CurveUpsert{
		{Request: reqA, Response: floodResponse()},
		{Request: reqB, Response: floodResponse()},
	}))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out, err := store.GetHazardData(ctx, []hazard.DataRequest{reqA, reqB})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, floodResponse(), out[reqB])
}

func TestStore_MissingCurveIsOmitted(t *testing.T) {
	store, err := NewStore(testDB(t, database.ProfileStandard, "hazard"), zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	stored := floodRequest(48.2, 16.4)
	missing := floodRequest(-33.9, 18.4)
	require.NoError(t, store.PutCurve(ctx, stored, floodResponse()))

	out, err := store.GetHazardData(ctx, []hazard.DataRequest{stored, missing})
	require.NoError(t, err)
	assert.Contains(t, out, stored)
	assert.NotContains(t, out, missing)
}

func TestStore_PutReplacesExisting(t *testing.T) {
	store, err := NewStore(testDB(t, database.ProfileStandard, "hazard"), zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	req := floodRequest(48.2, 16.4)
	require.NoError(t, store.PutCurve(ctx, req, floodResponse()))

	updated := floodResponse()
	updated.Intensities = []float64{0.4, 1.0, 2.0}
	require.NoError(t, store.PutCurve(ctx, req, updated))

	out, err := store.GetHazardData(ctx, []hazard.DataRequest{req})
	require.NoError(t, err)
	assert.Equal(t, updated.Intensities, out[req].Intensities)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// countingProvider wraps a Store-shaped response map and counts upstream hits.
type countingProvider struct {
	calls     int
	responses map[hazard.DataRequest]hazard.DataResponse
}

func (p *countingProvider) GetHazardData(ctx context.Context, requests []hazard.DataRequest) (map[hazard.DataRequest]hazard.DataResponse, error) {
	p.calls++
	out := make(map[hazard.DataRequest]hazard.DataResponse, len(requests))
	for _, req := range requests {
		if resp, ok := p.responses[req]; ok {
			out[req] = resp
		}
	}
	return out, nil
}

func TestCachingProvider_ReadThrough(t *testing.T) {
	ctx := context.Background()
	req := floodRequest(48.2, 16.4)
	inner := &countingProvider{responses: map[hazard.DataRequest]hazard.DataResponse{req: floodResponse()}}

	cache, err := NewCachingProvider(inner, testDB(t, database.ProfileCache, "cache"), zerolog.Nop())
	require.NoError(t, err)

	out, err := cache.GetHazardData(ctx, []hazard.DataRequest{req})
	require.NoError(t, err)
	assert.Equal(t, floodResponse(), out[req])
	assert.Equal(t, 1, inner.calls)

	// second read is a cache hit, the inner provider is not consulted
	out, err = cache.GetHazardData(ctx, []hazard.DataRequest{req})
	require.NoError(t, err)
	assert.Equal(t, floodResponse(), out[req])
	assert.Equal(t, 1, inner.calls)
}

func TestCachingProvider_MissIsNotCached(t *testing.T) {
	ctx := context.Background()
	req := floodRequest(48.2, 16.4)
	inner := &countingProvider{responses: map[hazard.DataRequest]hazard.DataResponse{}}

	cache, err := NewCachingProvider(inner, testDB(t, database.ProfileCache, "cache"), zerolog.Nop())
	require.NoError(t, err)

	out, err := cache.GetHazardData(ctx, []hazard.DataRequest{req})
	require.NoError(t, err)
	assert.NotContains(t, out, req)

	// the curve appears upstream later and must become visible
	inner.responses[req] = floodResponse()
	out, err = cache.GetHazardData(ctx, []hazard.DataRequest{req})
	require.NoError(t, err)
	assert.Equal(t, floodResponse(), out[req])
	assert.Equal(t, 2, inner.calls)
}

func TestCachingProvider_SweepExpired(t *testing.T) {
	ctx := context.Background()
	req := floodRequest(48.2, 16.4)
	inner := &countingProvider{responses: map[hazard.DataRequest]hazard.DataResponse{req: floodResponse()}}

	cache, err := NewCachingProvider(inner, testDB(t, database.ProfileCache, "cache"), zerolog.Nop())
	require.NoError(t, err)

	_, err = cache.GetHazardData(ctx, []hazard.DataRequest{req})
	require.NoError(t, err)

	// a negative TTL makes every entry stale
	removed, err := cache.SweepExpired(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = cache.GetHazardData(ctx, []hazard.DataRequest{req})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}
