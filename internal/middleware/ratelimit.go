package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig defines a fixed-window rate limit.
type RateLimitConfig struct {
	// RequestsPerWindow is the maximum number of requests per window. Must be > 0.
	RequestsPerWindow int
	// WindowDuration is the window length. Must be > 0.
	WindowDuration time.Duration
}

// Validate checks that the config describes a usable limit.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("RequestsPerWindow must be > 0 (got %d)", c.RequestsPerWindow)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("WindowDuration must be > 0 (got %s)", c.WindowDuration)
	}
	return nil
}

// Service defaults. Exports render the full annotation stack and upload two
// images, so they get a much tighter budget than plain CRUD traffic. Editor
// limits cover websocket session opens, not frames.
var (
	defaultGlobalLimit = RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute}
	defaultExportLimit = RateLimitConfig{RequestsPerWindow: 6, WindowDuration: time.Minute}
	defaultEditorLimit = RateLimitConfig{RequestsPerWindow: 20, WindowDuration: time.Minute}
)

// DefaultGlobalLimit returns the limit applied to all API traffic per client.
func DefaultGlobalLimit() RateLimitConfig {
	return defaultGlobalLimit
}

// DefaultExportLimit returns the limit for PNG export requests per client.
func DefaultExportLimit() RateLimitConfig {
	return defaultExportLimit
}

// DefaultEditorLimit returns the limit for editor session opens per client.
func DefaultEditorLimit() RateLimitConfig {
	return defaultEditorLimit
}

// RateLimitStore is the backend holding per-key window state. The Redis
// implementation is used when the service runs more than one replica.
type RateLimitStore interface {
	// Allow reports whether a request under key fits the limit. When it does
	// not, retryAfter is the number of seconds until the window resets.
	Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, retryAfter int)
}

// bucket tracks one key's count within the current window.
type bucket struct {
	count     int
	windowEnd time.Time
}

// InMemoryRateLimitStore is a fixed-window counter over a map. Suitable for a
// single replica; state is lost on restart. Safe for concurrent use.
type InMemoryRateLimitStore struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{
		buckets: make(map[string]*bucket),
	}
}

func (s *InMemoryRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	b, exists := s.buckets[key]
	if !exists || now.After(b.windowEnd) {
		s.buckets[key] = &bucket{
			count:     1,
			windowEnd: now.Add(config.WindowDuration),
		}
		return true, 0
	}

	if b.count < config.RequestsPerWindow {
		b.count++
		return true, 0
	}

	retryAfter := int(b.windowEnd.Sub(now).Seconds())
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, retryAfter
}

// Cleanup drops expired buckets. Call it periodically, every few window
// lengths, to keep the map from growing with one entry per client IP ever
// seen.
func (s *InMemoryRateLimitStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, b := range s.buckets {
		if now.After(b.windowEnd) {
			delete(s.buckets, key)
		}
	}
}

// KeyFunc extracts the rate limit key from a request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc keys limits by client IP. The service has no authenticated
// principal, so the IP is the only stable client identity available.
func IPKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// First hop in the chain is the client.
			if idx := strings.Index(xff, ","); idx != -1 {
				return strings.TrimSpace(xff[:idx])
			}
			return strings.TrimSpace(xff)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			// RemoteAddr without a port, keep as-is.
			return r.RemoteAddr
		}
		return host
	}
}

// writeRateLimited writes the 429 envelope with Retry-After and reset
// headers, pushing the error code back to the request logger.
func writeRateLimited(w http.ResponseWriter, r *http.Request, retryAfter int) {
	ctx := SetErrorCode(r.Context(), "rate_limited")
	UpdateResponseContext(w, ctx)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	resetTime := time.Now().Add(time.Duration(retryAfter) * time.Second).Unix()
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime, 10))

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	body, _ := json.Marshal(map[string]map[string]string{
		"error": {"code": "rate_limited", "message": "Too many requests, slow down"},
	})
	_, _ = w.Write(body)
}

// RateLimiter applies config to every request, keyed by keyFunc. Checks and
// rejections are counted under the "global" scope when metrics is non-nil.
func RateLimiter(store RateLimitStore, config RateLimitConfig, keyFunc KeyFunc, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics != nil {
				metrics.IncRateLimitRequests("global")
			}
			allowed, retryAfter := store.Allow(r.Context(), keyFunc(r), config)
			if !allowed {
				if metrics != nil {
					metrics.IncRateLimitBlocked("global")
				}
				writeRateLimited(w, r, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RouteRateLimiter applies config only to requests the matcher selects,
// keeping separate buckets and metric series per scope. Used to put the
// tight export budget on top of the global limit without starving CRUD
// traffic.
func RouteRateLimiter(match RouteMatcher, scope string, store RateLimitStore, config RateLimitConfig, keyFunc KeyFunc, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if match == nil || !match(r) {
				next.ServeHTTP(w, r)
				return
			}
			if metrics != nil {
				metrics.IncRateLimitRequests(scope)
			}
			allowed, retryAfter := store.Allow(r.Context(), scope+":"+keyFunc(r), config)
			if !allowed {
				if metrics != nil {
					metrics.IncRateLimitBlocked(scope)
				}
				writeRateLimited(w, r, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
