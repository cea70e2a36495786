package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mapnest/mapnest/internal/idempotency"
)

// IdempotencyKeyHeader names the header clients send to make an export
// request replayable.
const IdempotencyKeyHeader = "Idempotency-Key"

// idempotencyKeyContextKey is the context key for the validated key.
type idempotencyKeyContextKey struct{}

// SetIdempotencyKey stores the validated idempotency key in the context.
func SetIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyContextKey{}, key)
}

// GetIdempotencyKey retrieves the idempotency key from context, or "" if the
// request was not subject to idempotency enforcement.
func GetIdempotencyKey(ctx context.Context) string {
	if key, ok := ctx.Value(idempotencyKeyContextKey{}).(string); ok {
		return key
	}
	return ""
}

// RouteMatcher reports whether a request is subject to idempotency
// enforcement. Export routes embed a map area ID, so a matcher is used
// instead of an exact route table.
type RouteMatcher func(r *http.Request) bool

// replayWriter copies the response body while it streams to the client so a
// successful export can be replayed for duplicate keys.
type replayWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	wrote      bool
}

func newReplayWriter(w http.ResponseWriter) *replayWriter {
	return &replayWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (w *replayWriter) WriteHeader(statusCode int) {
	if !w.wrote {
		w.statusCode = statusCode
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *replayWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.body.Write(b[:n])
	return n, err
}

func (w *replayWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// writeKeyError writes the service error envelope for idempotency key
// failures and pushes the error code back to the request logger.
func writeKeyError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	ctx := SetErrorCode(r.Context(), code)
	UpdateResponseContext(w, ctx)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	body, _ := json.Marshal(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
	_, _ = w.Write(body)
}

// IdempotencyMiddleware makes matched POST requests replayable. Exports are
// expensive (render plus upload), so a client retrying after a dropped
// connection must not trigger a second render: the first successful response
// is stored under the client's Idempotency-Key and duplicates get the stored
// body and status back.
//
// Only 2xx responses are stored. Failed exports stay retryable under the
// same key.
func IdempotencyMiddleware(repo idempotency.Repository, match RouteMatcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if match == nil || !match(r) || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				writeKeyError(w, r, http.StatusBadRequest,
					"missing_idempotency_key",
					"Idempotency-Key header is required for export requests")
				return
			}

			if err := idempotency.ValidateKey(key); err != nil {
				code, message := "invalid_idempotency_key", "Invalid Idempotency-Key format"
				if errors.Is(err, idempotency.ErrKeyTooLong) {
					code = "idempotency_key_too_long"
					message = "Idempotency-Key exceeds maximum length of 64 characters"
				}
				writeKeyError(w, r, http.StatusBadRequest, code, message)
				return
			}

			ctx := SetIdempotencyKey(r.Context(), key)
			r = r.WithContext(ctx)

			existing, err := repo.Get(key)
			if err == nil {
				slog.InfoContext(ctx, "replaying stored export response",
					"key", key,
					"status", existing.ResponseStatusCode,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(existing.ResponseStatusCode)
				_, _ = w.Write([]byte(existing.ResponseBody))
				return
			}
			if !errors.Is(err, idempotency.ErrKeyNotFound) {
				// Lookup failed for some other reason. Run the export anyway
				// rather than refusing it.
				slog.ErrorContext(ctx, "idempotency key lookup failed", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			rw := newReplayWriter(w)
			next.ServeHTTP(rw, r)

			if rw.statusCode < 200 || rw.statusCode >= 300 {
				return
			}

			body := rw.body.String()
			record := &idempotency.Record{
				Key:                key,
				Method:             r.Method,
				Route:              r.URL.Path,
				ResponseHash:       idempotency.ComputeResponseHash(body),
				Status:             idempotency.StatusCompleted,
				ResponseBody:       body,
				ResponseStatusCode: rw.statusCode,
			}
			if err := repo.Store(record); err != nil {
				// The response already went out; the retry just pays for a
				// second render.
				slog.ErrorContext(ctx, "failed to store export response for replay", "key", key, "error", err)
				return
			}
			slog.InfoContext(ctx, "stored export response for replay", "key", key, "status", rw.statusCode)
		})
	}
}
