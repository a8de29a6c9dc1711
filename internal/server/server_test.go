package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/windward/internal/config"
	"github.com/aristath/windward/internal/database"
	"github.com/aristath/windward/internal/hazard"
	"github.com/aristath/windward/internal/hazard/store"
	"github.com/aristath/windward/internal/risk"
	"github.com/aristath/windward/internal/vulnerability"
)

// newTestServer wires a full stack against temp databases: the store is both
// the ingest target and the calculator's data provider.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := zerolog.Nop()

	hazardDB, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "hazard.db"),
		Profile: database.ProfileStandard,
		Name:    "hazard",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = hazardDB.Close() })

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cacheDB.Close() })

	hazardStore, err := store.NewStore(hazardDB, log)
	require.NoError(t, err)
	cached, err := store.NewCachingProvider(hazardStore, cacheDB, log)
	require.NoError(t, err)

	registry := vulnerability.NewRegistry(vulnerability.NewRealEstateRiverineInundationModel())
	dispatcher := hazard.NewDispatcher(cached, 2, log)
	calculator := risk.NewCalculator(registry, dispatcher, log)

	return New(Config{
		Log: log,
		Cfg: &config.Config{
			Port:            0,
			DefaultScenario: "historical",
			DefaultYear:     2030,
			FailurePolicy:   "isolate",
		},
		Calculator: calculator,
		Store:      hazardStore,
		HazardDB:   hazardDB,
		CacheDB:    cacheDB,
	})
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "windward", body["service"])
}

func TestIngestThenCalculate(t *testing.T) {
	srv := newTestServer(t)

	curves := []map[string]interface{}{{
		"hazard":         string(hazard.RiverineInundation),
		"indicator":      "flood_depth",
		"scenario":       "rcp8p5",
		"year":           2050,
		"latitude":       48.2,
		"longitude":      16.4,
		"return_periods": []float64{10, 100, 1000},
		"intensities":    []float64{0.2, 0.8, 1.6},
		"units":          "m",
	}}
	rec := doJSON(t, srv, http.MethodPost, "/api/hazard/curves", curves)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	payload := map[string]interface{}{
		"scenario": "rcp8p5",
		"year":     2050,
		"assets": []map[string]interface{}{{
			"id":        "house-1",
			"type":      "real_estate",
			"latitude":  48.2,
			"longitude": 16.4,
			"value":     1_000_000,
		}},
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/risk/calculate", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report risk.PortfolioReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	require.Len(t, report.Assets, 1)
	assert.True(t, report.Assets[0].Success)
	assert.Greater(t, report.Assets[0].AEL, 0.0)
	assert.Equal(t, report.Assets[0].AEL, report.TotalAEL)
}

func TestCalculate_NoCurvesIsolatesAsset(t *testing.T) {
	srv := newTestServer(t)

	payload := map[string]interface{}{
		"assets": []map[string]interface{}{{
			"id":       "house-1",
			"type":     "real_estate",
			"latitude": 10.0, "longitude": 10.0,
			"value": 500_000,
		}},
	}
	rec := doJSON(t, srv, http.MethodPost, "/api/risk/calculate", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	var report risk.PortfolioReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Assets, 1)
	assert.Contains(t, report.Assets[0].Error, "hazard data unavailable")
}

func TestCalculate_Validation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name    string
		payload interface{}
	}{
		{"empty portfolio", map[string]interface{}{"assets": []interface{}{}}},
		{"missing id", map[string]interface{}{"assets": []map[string]interface{}{{
			"type": "real_estate", "latitude": 0.0, "longitude": 0.0, "value": 1.0,
		}}}},
		{"bad latitude", map[string]interface{}{"assets": []map[string]interface{}{{
			"id": "x", "type": "real_estate", "latitude": 91.0, "longitude": 0.0, "value": 1.0,
		}}}},
		{"negative value", map[string]interface{}{"assets": []map[string]interface{}{{
			"id": "x", "type": "real_estate", "latitude": 0.0, "longitude": 0.0, "value": -5.0,
		}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/risk/calculate", tc.payload)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestLoadCurveSet_NotConfigured(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/hazard/curve-sets/global-flood/load", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSystemHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/system/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])

	dbs, ok := body["databases"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ok", dbs["hazard"])
	assert.Equal(t, "ok", dbs["cache"])
}

func TestSystemHealthDeep(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/system/health?deep=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])

	// the deep variant runs an integrity check on each database
	dbs, ok := body["databases"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ok", dbs["hazard"])
	assert.Equal(t, "ok", dbs["cache"])

	stats, ok := body["database_stats"].(map[string]interface{})
	require.True(t, ok)
	hazardStats, ok := stats["hazard"].(map[string]interface{})
	require.True(t, ok)
	assert.Greater(t, hazardStats["page_count"], 0.0)
	assert.Greater(t, hazardStats["page_size"], 0.0)
}
