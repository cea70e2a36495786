package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mapnest/mapnest/internal/middleware"
)

// HealthChecker probes one external dependency.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// readyTimeout bounds the whole readiness pass across all dependencies.
const readyTimeout = 5 * time.Second

// HealthHandlers serves the liveness and readiness probes. Postgres is the
// only hard dependency; Redis is probed when configured but editing and
// exports keep working on the in-memory fallbacks without it.
type HealthHandlers struct {
	dbChecker      HealthChecker
	redisChecker   HealthChecker
	metricsEnabled bool
}

// HealthHandlersConfig configures the probe handlers. Nil checkers mark
// their dependency as skipped rather than failing readiness.
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

// HealthResponse is the probe payload.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health. Liveness is answering at all, so no
// dependencies are probed here.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	writeProbe(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready. Any failing configured dependency turns the
// probe 503 so the load balancer drains this instance.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	probes := []struct {
		name    string
		checker HealthChecker
	}{
		{"database", h.dbChecker},
		{"redis", h.redisChecker},
	}

	checks := make(map[string]string, len(probes)+1)
	healthy := true
	for _, p := range probes {
		if p.checker == nil {
			checks[p.name] = "skipped"
			continue
		}
		if err := p.checker.HealthCheck(ctx); err != nil {
			checks[p.name] = "error"
			healthy = false
			slog.WarnContext(ctx, "readiness probe failed",
				"dependency", p.name,
				"error", err)
		} else {
			checks[p.name] = "ok"
		}
	}
	if h.metricsEnabled {
		checks["metrics"] = "ok"
	}

	status, statusCode := "healthy", http.StatusOK
	if !healthy {
		status, statusCode = "unhealthy", http.StatusServiceUnavailable
	}

	writeProbe(w, statusCode, HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeProbe(w http.ResponseWriter, statusCode int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode probe response", "error", err)
	}
}
