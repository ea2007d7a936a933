package simulation

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausphi/healthsim/internal/shared/auth"
	"github.com/ausphi/healthsim/internal/shared/config"
	"github.com/ausphi/healthsim/internal/shared/events"
	"github.com/ausphi/healthsim/internal/storage/memstore"
)

const testSecret = "api-test-secret"

type downPublisher struct{ events.Nop }

func (downPublisher) Health() error { return errors.New("connection refused") }

func newTestServer(t *testing.T, cfg RouterConfig, opts ...Option) (*Handler, http.Handler) {
	t.Helper()
	store := memstore.New()
	seedWorld(t, store)
	h := NewHandler(newSim(store, 17, opts...), zerolog.Nop())
	return h, h.Router(cfg)
}

func do(t *testing.T, srv http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	_, srv := newTestServer(t, RouterConfig{})

	rec := do(t, srv, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = do(t, srv, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	_, down := newTestServer(t, RouterConfig{}, WithPublisher(downPublisher{}))
	rec = do(t, down, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	rec = do(t, srv, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunDailyEndpoint(t *testing.T) {
	_, srv := newTestServer(t, RouterConfig{})

	body := `{"date":"2024-03-15","options":{"new_policies":3,"hospital_claims":2,"general_claims":2}}`
	rec := do(t, srv, http.MethodPost, "/api/v1/simulation/daily", body, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res DailyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), res.Date)
	assert.Len(t, res.Steps, 12)

	rec = do(t, srv, http.MethodGet, "/api/v1/simulation/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Running *RunStatus     `json:"running"`
		LastRun *RunStatus     `json:"last_run"`
		Counts  map[string]int `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Nil(t, status.Running)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, "daily", status.LastRun.Kind)
	assert.Empty(t, status.LastRun.Error)
	assert.Equal(t, 4, status.Counts["claims"])
}

func TestRunEndpointsValidateInput(t *testing.T) {
	_, srv := newTestServer(t, RouterConfig{})

	tests := []struct {
		name string
		path string
		body string
	}{
		{"bad json", "/api/v1/simulation/daily", `{"date":`},
		{"bad date", "/api/v1/simulation/daily", `{"date":"15/03/2024"}`},
		{"inverted range", "/api/v1/simulation/historical", `{"start":"2024-03-15","end":"2024-03-01"}`},
		{"bad frequency", "/api/v1/simulation/historical", `{"start":"2024-03-01","end":"2024-03-15","frequency":"hourly"}`},
		{"bad enhanced date", "/api/v1/simulation/enhanced", `{"date":"yesterday"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, tt.path, tt.body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestRunHistoricalEndpoint(t *testing.T) {
	_, srv := newTestServer(t, RouterConfig{})

	body := `{"start":"2024-03-01","end":"2024-03-15","frequency":"weekly","options":{"new_members":1,"general_claims":1}}`
	rec := do(t, srv, http.MethodPost, "/api/v1/simulation/historical", body, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res HistoricalResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Len(t, res.Days, 3)
}

func TestRunEnhancedEndpoint(t *testing.T) {
	_, srv := newTestServer(t, RouterConfig{})

	rec := do(t, srv, http.MethodPost, "/api/v1/simulation/enhanced", `{"date":"2024-03-31","config":{"actuarial":true}}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"counts"`)
}

func TestRunRejectedWhileBusy(t *testing.T) {
	h, srv := newTestServer(t, RouterConfig{})
	h.run.Lock()
	defer h.run.Unlock()

	rec := do(t, srv, http.MethodPost, "/api/v1/simulation/daily", `{"date":"2024-03-15"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "BUSY")
}

func TestRunRequiresOperatorToken(t *testing.T) {
	_, srv := newTestServer(t, RouterConfig{RequireAuth: true, Auth: config.AuthConfig{JWTSecret: testSecret}})
	body := `{"date":"2024-03-15","options":{"general_claims":1}}`

	rec := do(t, srv, http.MethodPost, "/api/v1/simulation/daily", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	viewer, err := auth.IssueToken(testSecret, "dashboard", []string{auth.RoleViewer}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodPost, "/api/v1/simulation/daily", body, viewer).Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/v1/simulation/status", "", viewer).Code)

	operator, err := auth.IssueToken(testSecret, "scheduler", []string{auth.RoleOperator}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/v1/simulation/daily", body, operator).Code)

	// Health stays open.
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/health", "", "").Code)
}

func TestRunFailureReportsStatus(t *testing.T) {
	h, srv := newTestServer(t, RouterConfig{}, WithStrictMode(true))
	h.sim.repo.(*memstore.Store).Fault = func(op, table string) error {
		if op == "insert" {
			return errors.New("disk full")
		}
		return nil
	}

	rec := do(t, srv, http.MethodPost, "/api/v1/simulation/daily", `{"date":"2024-03-15","options":{"new_members":1}}`, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk full")

	h.statusMu.RLock()
	defer h.statusMu.RUnlock()
	require.NotNil(t, h.last)
	assert.Contains(t, h.last.Error, "disk full")
}
