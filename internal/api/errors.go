// Package api provides HTTP API utilities including standardized error handling.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mapnest/mapnest/internal/editor"
	"github.com/mapnest/mapnest/internal/middleware"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeForbidden indicates the request is forbidden.
	ErrCodeForbidden = "forbidden"

	// ErrCodeConflict indicates a conflict with the current state.
	ErrCodeConflict = "conflict"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeBoundaryNotContained indicates a drawn ring escapes its parent
	// boundary.
	ErrCodeBoundaryNotContained = "boundary_not_contained"

	// ErrCodeBoundaryExists indicates the map area already has a boundary.
	ErrCodeBoundaryExists = "boundary_exists"

	// ErrCodeLayerNotEditable indicates a mutation targeted a read-only or
	// inherited layer.
	ErrCodeLayerNotEditable = "layer_not_editable"

	// ErrCodeNoActiveLayer indicates an annotation operation with no active
	// layer selected.
	ErrCodeNoActiveLayer = "no_active_layer"

	// ErrCodeDegenerateBoundary indicates a boundary ring with fewer than
	// three distinct vertices.
	ErrCodeDegenerateBoundary = "degenerate_boundary"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response.
// It writes the appropriate HTTP status code and returns a JSON error body.
//
// Format: {"error": {"code": "error_code", "message": "Error description"}}
//
// The error_code is logged by the logging middleware for all 4xx and 5xx
// responses when the handler calls middleware.SetErrorCode and passes the
// updated context here.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.UpdateResponseContext(w, ctx)

	errResp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	data, err := json.Marshal(errResp)
	if err != nil {
		// Fallback to plain text if JSON marshaling fails
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the recommended HTTP status code for common error codes.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeBoundaryNotContained,
		ErrCodeNoActiveLayer, ErrCodeDegenerateBoundary:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeForbidden, ErrCodeLayerNotEditable:
		return http.StatusForbidden
	case ErrCodeConflict, ErrCodeBoundaryExists:
		return http.StatusConflict
	case ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WriteEngineError maps a classified editor error onto the HTTP error
// envelope, keeping the engine's specific message.
func WriteEngineError(w http.ResponseWriter, r *http.Request, err error) {
	code := ErrCodeInternal
	switch editor.KindOf(err) {
	case editor.KindValidation:
		code = ErrCodeValidation
	case editor.KindAuthorization:
		code = ErrCodeLayerNotEditable
	case editor.KindNotFound:
		code = ErrCodeNotFound
	case editor.KindTransport:
		code = ErrCodeInternal
	}
	ctx := middleware.SetErrorCode(r.Context(), code)
	WriteError(w, ctx, StatusCodeMapping(code), code, err.Error())
}
