package middleware

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// staticRoutes are label values used as-is. Everything else goes through
// pattern normalization.
var staticRoutes = map[string]bool{
	"/":          true,
	"/map-areas": true,
	"/health":    true,
	"/ready":     true,
	"/metrics":   true,
}

// normalizePath collapses dynamic path segments into route patterns so metric
// label cardinality stays bounded by the route table, not by how many map
// areas exist. /map-areas/123/boundary becomes /map-areas/{id}/boundary.
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}

	if strings.HasPrefix(path, "/map-areas/") {
		parts := strings.Split(path, "/")
		if len(parts) == 3 && parts[2] != "" {
			return "/map-areas/{id}"
		}
		if len(parts) == 4 {
			switch parts[3] {
			case "children", "boundary", "layers", "editor", "export":
				return "/map-areas/{id}/" + parts[3]
			}
		}
		if len(parts) == 5 && parts[3] == "layers" && parts[4] == "reorder" {
			return "/map-areas/{id}/layers/reorder"
		}
	}

	if strings.HasPrefix(path, "/layers/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && parts[3] == "annotations" {
			return "/layers/{id}/annotations"
		}
		if len(parts) == 3 && parts[2] != "" {
			return "/layers/{id}"
		}
	}

	if strings.HasPrefix(path, "/annotations/") {
		parts := strings.Split(path, "/")
		if len(parts) == 3 && parts[2] != "" {
			return "/annotations/{id}"
		}
	}

	// Unknown shapes keep their literal path so new routes still show up.
	return path
}

// metricsResponseWriter captures status and response size for observation.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

// Hijack lets editor websocket upgrades pass through the metrics wrapper.
func (mrw *metricsResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(mrw.ResponseWriter).Hijack()
}

// HTTPMetrics records duration, size, and count for every request except the
// health probes, which would otherwise dominate the series.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			requestSize := int64(0)
			if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
				if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
					requestSize = size
				}
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
