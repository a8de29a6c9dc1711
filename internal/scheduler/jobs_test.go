package scheduler

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
	"github.com/aristath/windward/internal/hazard/store"
)

type staticProvider struct {
	responses map[hazard.DataRequest]hazard.DataResponse
}

func (p *staticProvider) GetHazardData(ctx context.Context, requests []hazard.DataRequest) (map[hazard.DataRequest]hazard.DataResponse, error) {
	out := make(map[hazard.DataRequest]hazard.DataResponse)
	for _, req := range requests {
		if resp, ok := p.responses[req]; ok {
			out[req] = resp
		}
	}
	return out, nil
}

func newCacheDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCacheSweepJob(t *testing.T) {
	req := hazard.NewDataRequest(hazard.RiverineInundation, "flood_depth", "historical", 0, 1, 2)
	provider := &staticProvider{responses: map[hazard.DataRequest]hazard.DataResponse{
		req: {ReturnPeriods: []float64{10}, Intensities: []float64{0.5}, Units: hazard.UnitMetres},
	}}

	cache, err := store.NewCachingProvider(provider, newCacheDB(t), zerolog.Nop())
	require.NoError(t, err)

	_, err = cache.GetHazardData(context.Background(), []hazard.DataRequest{req})
	require.NoError(t, err)

	// negative TTL expires everything immediately
	job := NewCacheSweepJob(cache, -time.Hour, zerolog.Nop())
	assert.Equal(t, "cache_sweep", job.Name())
	require.NoError(t, job.Run())

	removed, err := cache.SweepExpired(context.Background(), -time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed, "sweep already removed the entry")
}

type countingJob struct {
	runs int
}

func (j *countingJob) Run() error { j.runs++; return nil }
func (j *countingJob) Name() string { return "counting" }

func TestScheduler_RunNow(t *testing.T) {
	sched := New(zerolog.Nop())
	job := &countingJob{}
	require.NoError(t, sched.RunNow(job))
	assert.Equal(t, 1, job.runs)
}

func TestDBMaintenanceJob(t *testing.T) {
	db := newCacheDB(t)

	job := NewDBMaintenanceJob(zerolog.Nop(), db)
	assert.Equal(t, "db_maintenance", job.Name())
	assert.NoError(t, job.Run())
}
