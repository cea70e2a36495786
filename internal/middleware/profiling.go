package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strings"
)

// pprofPrefix is where the development profiler is mounted. Renders hold the
// whole annotation set in memory, so heap and CPU profiles of the export path
// are the profiles worth capturing.
const pprofPrefix = "/debug/pprof"

// ProfilingConfig configures the profiling middleware.
type ProfilingConfig struct {
	// Enabled exposes the pprof endpoints. Development only.
	Enabled bool

	// Environment guards against enabling the profiler in production, where
	// heap dumps would leak credentials and map data.
	Environment string
}

// Profiling mounts net/http/pprof under /debug/pprof when enabled. The
// Environment field is checked as a second gate: a production value wins over
// Enabled and the middleware becomes a pass-through.
func Profiling(config ProfilingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !config.Enabled {
			return next
		}

		if config.Environment == "production" || config.Environment == "prod" {
			slog.Error("refusing to enable profiling in production",
				"environment", config.Environment,
			)
			return next
		}

		slog.Warn("profiling endpoints enabled",
			"environment", config.Environment,
			"endpoints", pprofPrefix+"/*",
		)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, pprofPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			switch r.URL.Path {
			case pprofPrefix + "/cmdline":
				pprof.Cmdline(w, r)
			case pprofPrefix + "/profile":
				pprof.Profile(w, r)
			case pprofPrefix + "/symbol":
				pprof.Symbol(w, r)
			case pprofPrefix + "/trace":
				pprof.Trace(w, r)
			default:
				// Index also serves the named runtime profiles (heap,
				// goroutine, block, mutex, allocs, threadcreate).
				pprof.Index(w, r)
			}
		})
	}
}

// ProfilingStatus reports the profiler configuration, for poking at a
// development deployment without guessing.
func ProfilingStatus(config ProfilingConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		status := "disabled"
		if config.Enabled {
			status = "enabled"
		}
		body, _ := json.Marshal(map[string]any{
			"profiling_enabled": config.Enabled,
			"environment":       config.Environment,
			"status":            status,
			"prefix":            pprofPrefix,
		})
		if _, err := w.Write(body); err != nil {
			slog.Error("failed to write profiling status response", "error", err)
		}
	}
}
