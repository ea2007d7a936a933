package simulation

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/ausphi/healthsim/internal/enhanced"
	"github.com/ausphi/healthsim/internal/shared/auth"
	"github.com/ausphi/healthsim/internal/shared/config"
	apperrors "github.com/ausphi/healthsim/internal/shared/errors"
	"github.com/ausphi/healthsim/internal/shared/metrics"
	secmiddleware "github.com/ausphi/healthsim/internal/shared/middleware"
)

const maxBodyBytes = 1 << 20

// RunStatus describes the most recent API-triggered run.
type RunStatus struct {
	Kind       string    `json:"kind"`
	Date       string    `json:"date,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Handler exposes a Simulation over HTTP. Runs are serialised; a request
// arriving while another run is in progress gets 409.
type Handler struct {
	sim *Simulation
	log zerolog.Logger
	run sync.Mutex

	statusMu sync.RWMutex
	running  *RunStatus
	last     *RunStatus
	counts   map[string]int
}

// NewHandler creates a new simulation handler
func NewHandler(sim *Simulation, log zerolog.Logger) *Handler {
	return &Handler{sim: sim, log: log.With().Str("component", "api").Logger()}
}

// RouterConfig holds the HTTP concerns around the simulation routes.
type RouterConfig struct {
	Auth           config.AuthConfig
	RequireAuth    bool
	RateLimitRPS   float64
	RateLimitBurst int
}

// Router builds the full HTTP surface: health, readiness, metrics and the
// versioned simulation API.
func (h *Handler) Router(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.RequestLogger(h.log))
	r.Use(metrics.Middleware)

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RequireAuth {
			r.Use(auth.Middleware(cfg.Auth))
		}
		if cfg.RateLimitRPS > 0 {
			r.Use(secmiddleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware)
		}
		r.Use(secmiddleware.MaxBody(maxBodyBytes))
		r.Mount("/simulation", h.Routes())
	})
	return r
}

// Routes registers the simulation routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/status", h.Status)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(auth.RoleOperator))
		r.Post("/daily", h.RunDaily)
		r.Post("/historical", h.RunHistorical)
		r.Post("/enhanced", h.RunEnhanced)
	})
	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready checks the repository and the event publisher.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"server": "ready"}
	allReady := true

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.sim.repo.Ping(ctx); err != nil {
		checks["database"] = "not ready: " + err.Error()
		allReady = false
	} else {
		checks["database"] = "ready"
	}
	if err := h.sim.pub.Health(); err != nil {
		checks["events"] = "not ready: " + err.Error()
		allReady = false
	} else {
		checks["events"] = "ready"
	}

	status, text := http.StatusOK, "ready"
	if !allReady {
		status, text = http.StatusServiceUnavailable, "not ready"
	}
	writeJSON(w, status, map[string]any{"status": text, "checks": checks})
}

// Status returns the current and last run and the loaded collection sizes.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.statusMu.RLock()
	defer h.statusMu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"running":  h.running,
		"last_run": h.last,
		"counts":   h.counts,
	})
}

type dailyRequest struct {
	Date    string        `json:"date"`
	Options *DailyOptions `json:"options"`
}

// RunDaily simulates one day.
func (h *Handler) RunDaily(w http.ResponseWriter, r *http.Request) {
	var req dailyRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, err)
		return
	}
	opts := DefaultDailyOptions()
	if req.Options != nil {
		opts = *req.Options
	}

	h.exclusive(w, "daily", req.Date, func() (any, error) {
		return h.sim.RunDaily(r.Context(), date, opts)
	})
}

type historicalRequest struct {
	Start     string        `json:"start"`
	End       string        `json:"end"`
	Frequency string        `json:"frequency"`
	Randomize bool          `json:"randomize"`
	Enhanced  bool          `json:"enhanced"`
	Options   *DailyOptions `json:"options"`
}

// RunHistorical simulates a date range.
func (h *Handler) RunHistorical(w http.ResponseWriter, r *http.Request) {
	var req historicalRequest
	if !decode(w, r, &req) {
		return
	}
	start, err := parseDate(req.Start)
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := parseDate(req.End)
	if err != nil {
		writeError(w, err)
		return
	}
	if end.Before(start) {
		writeError(w, apperrors.Validation("end precedes start", map[string]string{"start": req.Start, "end": req.End}))
		return
	}
	freq, err := ParseFrequency(req.Frequency)
	if err != nil {
		writeError(w, apperrors.Validation(err.Error(), nil))
		return
	}
	opts := HistoricalOptions{Frequency: freq, Randomize: req.Randomize, Enhanced: req.Enhanced, Daily: DefaultDailyOptions()}
	if req.Options != nil {
		opts.Daily = *req.Options
	}

	h.exclusive(w, "historical", req.Start+".."+req.End, func() (any, error) {
		return h.sim.RunHistorical(r.Context(), start, end, opts)
	})
}

type enhancedRequest struct {
	Date   string           `json:"date"`
	Config *enhanced.Config `json:"config"`
}

// RunEnhanced runs the enhanced generators for one date.
func (h *Handler) RunEnhanced(w http.ResponseWriter, r *http.Request) {
	var req enhancedRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, err)
		return
	}
	cfg := enhanced.DefaultConfig()
	if req.Config != nil {
		cfg = *req.Config
	}

	h.exclusive(w, "enhanced", req.Date, func() (any, error) {
		return h.sim.RunEnhanced(r.Context(), date, cfg)
	})
}

// exclusive runs fn unless another run holds the lock, tracking status and
// writing fn's result.
func (h *Handler) exclusive(w http.ResponseWriter, kind, date string, fn func() (any, error)) {
	if !h.run.TryLock() {
		writeError(w, apperrors.Busy())
		return
	}
	defer h.run.Unlock()

	st := &RunStatus{Kind: kind, Date: date, StartedAt: time.Now().UTC()}
	h.setStatus(st, nil)

	result, err := fn()

	st.FinishedAt = time.Now().UTC()
	if err != nil {
		st.Error = err.Error()
	}
	h.setStatus(nil, st)

	if err != nil {
		h.log.Error().Err(err).Str("kind", kind).Msg("simulation run failed")
		writeJSON(w, apperrors.StatusOf(err), map[string]any{"error": err.Error(), "result": result})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) setStatus(running, last *RunStatus) {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()
	h.running = running
	if last != nil {
		h.last = last
		h.counts = h.sim.Counts()
	}
}

// --- Helpers ---

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, apperrors.Validation("date must be YYYY-MM-DD", map[string]string{"date": s})
	}
	return d, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, apperrors.BadRequest("Invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		writeJSON(w, apperrors.StatusOf(err), appErr)
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
