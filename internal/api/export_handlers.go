package api

import (
	"errors"
	"net/http"

	"github.com/mapnest/mapnest/internal/boundary"
	"github.com/mapnest/mapnest/internal/export"
	"github.com/mapnest/mapnest/internal/maparea"
	"github.com/mapnest/mapnest/internal/middleware"
)

// ExportHandlers holds dependencies for PNG export endpoints.
type ExportHandlers struct {
	service *export.Service
}

// NewExportHandlers creates a new ExportHandlers instance.
func NewExportHandlers(service *export.Service) *ExportHandlers {
	return &ExportHandlers{service: service}
}

// Create handles POST /map-areas/{id}/export: it renders the map area's
// boundary and visible annotations to PNG and returns the artifact locations.
func (h *ExportHandlers) Create(w http.ResponseWriter, r *http.Request, mapAreaID int64) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}

	result, err := h.service.Export(r.Context(), mapAreaID)
	if err != nil {
		switch {
		case errors.Is(err, maparea.ErrMapAreaNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Map area not found")
		case errors.Is(err, boundary.ErrBoundaryNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Map area has no boundary to render")
		default:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to export map area")
		}
		return
	}

	writeJSON(w, http.StatusCreated, result)
}
