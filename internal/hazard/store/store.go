// Package store persists hazard curve sets in SQLite and serves them to the
// dispatcher as a hazard.DataProvider. Curve payloads are msgpack blobs keyed
// by the full request tuple, so a lookup is a single primary key read.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/windward/internal/database"
	"github.com/aristath/windward/internal/hazard"
)

const schema = `
CREATE TABLE IF NOT EXISTS hazard_curves (
    hazard     TEXT    NOT NULL,
    indicator  TEXT    NOT NULL,
    scenario   TEXT    NOT NULL,
    year       INTEGER NOT NULL,
    latitude   REAL    NOT NULL,
    longitude  REAL    NOT NULL,
    buffer     INTEGER NOT NULL DEFAULT 0,
    payload    BLOB    NOT NULL,
    updated_at TEXT    NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY (hazard, indicator, scenario, year, latitude, longitude, buffer)
);

CREATE INDEX IF NOT EXISTS idx_hazard_curves_set
    ON hazard_curves (hazard, indicator, scenario, year);
`

// curveRecord is the msgpack payload stored per curve. Acute hazards carry
// the return period curve; chronic hazards carry a single parameter.
type curveRecord struct {
	ReturnPeriods []float64 `msgpack:"return_periods"`
	Intensities   []float64 `msgpack:"intensities"`
	Parameter     float64   `msgpack:"parameter"`
	Units         string    `msgpack:"units"`
}

// Store is a SQLite-backed hazard curve repository.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// NewStore opens the hazard curve repository on the given database and
// applies its schema.
func NewStore(db *database.DB, log zerolog.Logger) (*Store, error) {
	if err := db.ApplySchema(schema); err != nil {
		return nil, fmt.Errorf("applying hazard curve schema: %w", err)
	}
	return &Store{
		db:  db,
		log: log.With().Str("component", "hazard_store").Logger(),
	}, nil
}

const upsertCurveSQL = `
		INSERT INTO hazard_curves (hazard, indicator, scenario, year, latitude, longitude, buffer, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (hazard, indicator, scenario, year, latitude, longitude, buffer)
		DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`

func encodeCurve(req hazard.DataRequest, resp hazard.DataResponse) ([]byte, error) {
	payload, err := msgpack.Marshal(curveRecord{
		ReturnPeriods: resp.ReturnPeriods,
		Intensities:   resp.Intensities,
		Parameter:     resp.Parameter,
		Units:         resp.Units,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding curve for %s: %w", req, err)
	}
	return payload, nil
}

// PutCurve inserts or replaces the curve for one request tuple.
func (s *Store) PutCurve(ctx context.Context, req hazard.DataRequest, resp hazard.DataResponse) error {
	return s.PutCurveBatch(ctx, []CurveUpsert{{Request: req, Response: resp}})
}

// CurveUpsert pairs a request tuple with the curve to store under it.
type CurveUpsert struct {
	Request  hazard.DataRequest
	Response hazard.DataResponse
}

// PutCurveBatch stores a batch of curves in a single transaction so a
// partially ingested curve set never becomes visible.
func (s *Store) PutCurveBatch(ctx context.Context, batch []CurveUpsert) error {
	return database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertCurveSQL)
		if err != nil {
			return fmt.Errorf("preparing curve upsert: %w", err)
		}
		defer stmt.Close()

		for _, u := range batch {
			payload, err := encodeCurve(u.Request, u.Response)
			if err != nil {
				return err
			}
			req := u.Request
			if _, err := stmt.ExecContext(ctx,
				string(req.Hazard), req.Indicator, req.Scenario, req.Year,
				req.Latitude, req.Longitude, req.Buffer, payload); err != nil {
				return fmt.Errorf("storing curve for %s: %w", req, err)
			}
		}
		return nil
	})
}

// GetHazardData looks up each request's curve. Requests with no stored curve
// are simply absent from the result map; the dispatcher turns those into
// per-request unavailability errors.
func (s *Store) GetHazardData(ctx context.Context, requests []hazard.DataRequest) (map[hazard.DataRequest]hazard.DataResponse, error) {
	out := make(map[hazard.DataRequest]hazard.DataResponse, len(requests))
	for _, req := range requests {
		resp, err := s.getCurve(ctx, req)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.log.Debug().Str("request", req.String()).Msg("No stored curve for request")
				continue
			}
			return nil, err
		}
		out[req] = resp
	}
	return out, nil
}

func (s *Store) getCurve(ctx context.Context, req hazard.DataRequest) (hazard.DataResponse, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM hazard_curves
		WHERE hazard = ? AND indicator = ? AND scenario = ? AND year = ? AND latitude = ? AND longitude = ? AND buffer = ?`,
		string(req.Hazard), req.Indicator, req.Scenario, req.Year, req.Latitude, req.Longitude, req.Buffer).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hazard.DataResponse{}, err
		}
		return hazard.DataResponse{}, fmt.Errorf("reading curve for %s: %w", req, err)
	}

	var rec curveRecord
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return hazard.DataResponse{}, fmt.Errorf("decoding curve for %s: %w", req, err)
	}
	return hazard.DataResponse{
		ReturnPeriods: rec.ReturnPeriods,
		Intensities:   rec.Intensities,
		Parameter:     rec.Parameter,
		Units:         rec.Units,
	}, nil
}

// Count returns the number of stored curves.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM hazard_curves").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting curves: %w", err)
	}
	return n, nil
}
