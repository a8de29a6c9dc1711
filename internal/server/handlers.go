package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/windward/internal/database"
	"github.com/aristath/windward/internal/hazard"
	"github.com/aristath/windward/internal/hazard/store"
	"github.com/aristath/windward/internal/portfolio"
	"github.com/aristath/windward/internal/risk"
)

// maxBodyBytes caps request bodies; portfolios and curve sets are bounded.
const maxBodyBytes = 16 << 20

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "windward",
		"version": "1.0.0",
	})
}

// calculateRequest is the POST /api/risk/calculate payload.
type calculateRequest struct {
	Assets   []portfolio.Asset `json:"assets"`
	Scenario string            `json:"scenario,omitempty"`
	Year     int               `json:"year,omitempty"`
	Policy   string            `json:"policy,omitempty"`
}

// handleCalculate runs the risk pipeline for a submitted portfolio
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if len(req.Assets) == 0 {
		s.writeError(w, http.StatusBadRequest, "portfolio must contain at least one asset")
		return
	}
	for _, a := range req.Assets {
		if a.ID == "" {
			s.writeError(w, http.StatusBadRequest, "every asset needs an id")
			return
		}
		if a.Latitude < -90 || a.Latitude > 90 || a.Longitude < -180 || a.Longitude > 180 {
			s.writeError(w, http.StatusBadRequest, "asset "+a.ID+" has coordinates outside valid ranges")
			return
		}
		if a.Value < 0 {
			s.writeError(w, http.StatusBadRequest, "asset "+a.ID+" has negative value")
			return
		}
	}

	params := risk.Params{
		Scenario: req.Scenario,
		Year:     req.Year,
		Policy:   risk.FailurePolicy(req.Policy),
	}
	if params.Scenario == "" {
		params.Scenario = s.cfg.DefaultScenario
	}
	if params.Year == 0 {
		params.Year = s.cfg.DefaultYear
	}
	if params.Policy == "" {
		params.Policy = risk.FailurePolicy(s.cfg.FailurePolicy)
	}

	report, err := s.calculator.Run(r.Context(), &portfolio.Portfolio{Assets: req.Assets}, params)
	if err != nil {
		if errors.Is(err, risk.ErrCalculationAborted) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.log.Error().Err(err).Msg("Portfolio calculation failed")
		s.writeError(w, http.StatusInternalServerError, "calculation failed")
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

// curveUpload is one curve in a POST /api/hazard/curves payload.
type curveUpload struct {
	Hazard        string    `json:"hazard"`
	Indicator     string    `json:"indicator"`
	Scenario      string    `json:"scenario"`
	Year          int       `json:"year"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	ReturnPeriods []float64 `json:"return_periods,omitempty"`
	Intensities   []float64 `json:"intensities,omitempty"`
	Parameter     float64   `json:"parameter,omitempty"`
	Units         string    `json:"units"`
}

// handleIngestCurves upserts hazard curves into the local store
func (s *Server) handleIngestCurves(w http.ResponseWriter, r *http.Request) {
	var uploads []curveUpload
	if !s.decodeJSON(w, r, &uploads) {
		return
	}
	if len(uploads) == 0 {
		s.writeError(w, http.StatusBadRequest, "no curves in payload")
		return
	}

	batch := make([]store.CurveUpsert, 0, len(uploads))
	for _, u := range uploads {
		if u.Hazard == "" || u.Indicator == "" || u.Scenario == "" {
			s.writeError(w, http.StatusBadRequest, "every curve needs hazard, indicator and scenario")
			return
		}
		batch = append(batch, store.CurveUpsert{
			Request: hazard.NewDataRequest(hazard.Type(u.Hazard), u.Indicator, u.Scenario, u.Year, u.Latitude, u.Longitude),
			Response: hazard.DataResponse{
				ReturnPeriods: u.ReturnPeriods,
				Intensities:   u.Intensities,
				Parameter:     u.Parameter,
				Units:         u.Units,
			},
		})
	}
	// all or nothing: a rejected curve must not leave a partial upload behind
	if err := s.store.PutCurveBatch(r.Context(), batch); err != nil {
		s.log.Error().Err(err).Msg("Curve ingest failed")
		s.writeError(w, http.StatusInternalServerError, "curve ingest failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"stored": len(uploads),
	})
}

// handleLoadCurveSet pulls a published curve set from the object store
func (s *Server) handleLoadCurveSet(w http.ResponseWriter, r *http.Request) {
	if s.loader == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no object store configured")
		return
	}

	name := chi.URLParam(r, "name")
	count, err := s.loader.LoadCurveSet(r.Context(), name)
	if err != nil {
		s.log.Error().Err(err).Str("curve_set", name).Msg("Curve set load failed")
		s.writeError(w, http.StatusBadGateway, "curve set load failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"curves": count,
	})
}

// handleSystemHealth reports process and storage health. With ?deep=true the
// database checks run a full integrity check instead of a ping.
func (s *Server) handleSystemHealth(w http.ResponseWriter, r *http.Request) {
	deep := r.URL.Query().Get("deep") == "true"

	health := map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(s.startup).Seconds()),
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		health["cpu_percent"] = cpuPercent[0]
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		health["memory_percent"] = memStat.UsedPercent
	}

	check := func(db *database.DB) string {
		if deep {
			return checkStatus(db.HealthCheck(r.Context()))
		}
		return checkStatus(db.QuickCheck(r.Context()))
	}

	dbStatus := map[string]string{}
	dbStats := map[string]*database.Stats{}
	if s.hazardDB != nil {
		dbStatus["hazard"] = check(s.hazardDB)
		if st, err := s.hazardDB.GetStats(); err == nil {
			dbStats["hazard"] = st
		}
	}
	if s.cacheDB != nil {
		dbStatus["cache"] = check(s.cacheDB)
		if st, err := s.cacheDB.GetStats(); err == nil {
			dbStats["cache"] = st
		}
	}
	health["databases"] = dbStatus
	health["database_stats"] = dbStats

	if s.store != nil {
		if n, err := s.store.Count(r.Context()); err == nil {
			health["stored_curves"] = n
		}
	}

	for _, status := range dbStatus {
		if status != "ok" {
			health["status"] = "degraded"
			s.writeJSON(w, http.StatusServiceUnavailable, health)
			return
		}
	}

	s.writeJSON(w, http.StatusOK, health)
}

func checkStatus(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}

// decodeJSON reads a size-capped JSON body, responding with 400 on failure
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON payload: "+err.Error())
		return false
	}
	return true
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
