package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/windward/internal/database"
	"github.com/aristath/windward/internal/hazard/store"
)

// CacheSweepJob removes expired entries from the hazard response cache.
type CacheSweepJob struct {
	cache *store.CachingProvider
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCacheSweepJob creates a cache sweep job with the given entry TTL.
func NewCacheSweepJob(cache *store.CachingProvider, ttl time.Duration, log zerolog.Logger) *CacheSweepJob {
	return &CacheSweepJob{
		cache: cache,
		ttl:   ttl,
		log:   log.With().Str("job", "cache_sweep").Logger(),
	}
}

// Name implements Job
func (j *CacheSweepJob) Name() string { return "cache_sweep" }

// Run implements Job
func (j *CacheSweepJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := j.cache.SweepExpired(ctx, j.ttl)
	if err != nil {
		return err
	}
	j.log.Debug().Int64("removed", removed).Msg("Cache sweep finished")
	return nil
}

// DBMaintenanceJob truncates the WAL files of the given databases to keep
// them from growing unbounded between restarts, then vacuums to reclaim
// space freed by cache sweeps and curve replacements.
type DBMaintenanceJob struct {
	databases []*database.DB
	log       zerolog.Logger
}

// NewDBMaintenanceJob creates a database maintenance job.
func NewDBMaintenanceJob(log zerolog.Logger, databases ...*database.DB) *DBMaintenanceJob {
	return &DBMaintenanceJob{
		databases: databases,
		log:       log.With().Str("job", "db_maintenance").Logger(),
	}
}

// Name implements Job
func (j *DBMaintenanceJob) Name() string { return "db_maintenance" }

// Run implements Job
func (j *DBMaintenanceJob) Run() error {
	for _, db := range j.databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			// keep maintaining the remaining databases
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
			continue
		}
		if err := db.Vacuum(); err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("Vacuum failed")
		}
	}
	return nil
}
