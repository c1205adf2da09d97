package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/edwds/mimy/internal/middleware"
)

// HealthChecker is implemented by dependencies that can report liveness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

const readyCheckTimeout = 5 * time.Second

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	dbChecker      HealthChecker
	redisChecker   HealthChecker
	metricsEnabled bool
}

// HealthHandlersConfig configures the probes. Checkers may be nil when the
// corresponding backend is not wired (in-memory repos, caching disabled).
type HealthHandlersConfig struct {
	DBChecker      HealthChecker
	RedisChecker   HealthChecker
	MetricsEnabled bool
}

func NewHealthHandlers(config HealthHandlersConfig) *HealthHandlers {
	return &HealthHandlers{
		dbChecker:      config.DBChecker,
		redisChecker:   config.RedisChecker,
		metricsEnabled: config.MetricsEnabled,
	}
}

// HealthResponse is the JSON body of both probes.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

func (h *HealthHandlers) writeProbe(w http.ResponseWriter, statusCode int, status string, checks map[string]string) {
	response := HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode probe response", "error", err)
	}
}

func rejectNonGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return false
	}
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
	WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	return true
}

// Health handles GET /health, the liveness probe. Answering at all means
// the process is alive, so it never consults dependencies.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if rejectNonGet(w, r) {
		return
	}
	h.writeProbe(w, http.StatusOK, "healthy", map[string]string{"runtime": "ok"})
}

// Ready handles GET /ready, the readiness probe. The database is the only
// hard dependency; a Redis outage only degrades performance, so it is
// reported but does not fail readiness.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if rejectNonGet(w, r) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	checks["database"] = "ok"
	if h.dbChecker != nil {
		if err := h.dbChecker.HealthCheck(ctx); err != nil {
			checks["database"] = "error"
			healthy = false
			slog.WarnContext(ctx, "database health check failed", "error", err)
		}
	}

	checks["redis"] = "ok"
	if h.redisChecker != nil {
		if err := h.redisChecker.HealthCheck(ctx); err != nil {
			checks["redis"] = "degraded"
			slog.WarnContext(ctx, "redis health check failed", "error", err)
		}
	}

	checks["metrics"] = "ok"

	if !healthy {
		h.writeProbe(w, http.StatusServiceUnavailable, "unhealthy", checks)
		return
	}
	h.writeProbe(w, http.StatusOK, "healthy", checks)
}
