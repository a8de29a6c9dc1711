package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/windward/internal/database"
	"github.com/aristath/windward/internal/hazard"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS hazard_response_cache (
    key        TEXT    PRIMARY KEY,
    payload    BLOB    NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_hazard_response_cache_age
    ON hazard_response_cache (created_at);
`

// CachingProvider is a read-through cache in front of another
// hazard.DataProvider. Hits are served from the cache database; misses are
// forwarded to the inner provider in one batch and cached on the way back.
// Entries never expire on read, a periodic sweep removes stale rows.
type CachingProvider struct {
	inner hazard.DataProvider
	db    *database.DB
	log   zerolog.Logger
}

// NewCachingProvider wraps a provider with the cache database.
func NewCachingProvider(inner hazard.DataProvider, db *database.DB, log zerolog.Logger) (*CachingProvider, error) {
	if err := db.ApplySchema(cacheSchema); err != nil {
		return nil, fmt.Errorf("applying hazard cache schema: %w", err)
	}
	return &CachingProvider{
		inner: inner,
		db:    db,
		log:   log.With().Str("component", "hazard_cache").Logger(),
	}, nil
}

// GetHazardData serves cached responses and forwards only the misses.
func (c *CachingProvider) GetHazardData(ctx context.Context, requests []hazard.DataRequest) (map[hazard.DataRequest]hazard.DataResponse, error) {
	out := make(map[hazard.DataRequest]hazard.DataResponse, len(requests))
	var misses []hazard.DataRequest

	for _, req := range requests {
		resp, ok, err := c.lookup(ctx, req)
		if err != nil {
			// a broken cache row must not fail the read path
			c.log.Warn().Err(err).Str("request", req.String()).Msg("Cache lookup failed")
			misses = append(misses, req)
			continue
		}
		if !ok {
			misses = append(misses, req)
			continue
		}
		out[req] = resp
	}

	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := c.inner.GetHazardData(ctx, misses)
	if err != nil {
		return nil, err
	}
	for req, resp := range fetched {
		out[req] = resp
		if err := c.put(ctx, req, resp); err != nil {
			c.log.Warn().Err(err).Str("request", req.String()).Msg("Cache write failed")
		}
	}

	c.log.Debug().
		Int("requests", len(requests)).
		Int("misses", len(misses)).
		Msg("Hazard cache read")

	return out, nil
}

func (c *CachingProvider) lookup(ctx context.Context, req hazard.DataRequest) (hazard.DataResponse, bool, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT payload FROM hazard_response_cache WHERE key = ?", req.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return hazard.DataResponse{}, false, nil
	}
	if err != nil {
		return hazard.DataResponse{}, false, err
	}

	var rec curveRecord
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return hazard.DataResponse{}, false, err
	}
	return hazard.DataResponse{
		ReturnPeriods: rec.ReturnPeriods,
		Intensities:   rec.Intensities,
		Parameter:     rec.Parameter,
		Units:         rec.Units,
	}, true, nil
}

func (c *CachingProvider) put(ctx context.Context, req hazard.DataRequest, resp hazard.DataResponse) error {
	payload, err := msgpack.Marshal(curveRecord{
		ReturnPeriods: resp.ReturnPeriods,
		Intensities:   resp.Intensities,
		Parameter:     resp.Parameter,
		Units:         resp.Units,
	})
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO hazard_response_cache (key, payload, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		req.String(), payload, time.Now().Unix())
	return err
}

// SweepExpired deletes entries older than the TTL and returns how many rows
// were removed.
func (c *CachingProvider) SweepExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl).Unix()
	res, err := c.db.ExecContext(ctx,
		"DELETE FROM hazard_response_cache WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweeping hazard cache: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		c.log.Info().Int64("removed", removed).Msg("Swept expired hazard cache entries")
	}
	return removed, nil
}
