package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mapnest/mapnest/internal/boundary"
	"github.com/mapnest/mapnest/internal/geom"
	"github.com/mapnest/mapnest/internal/maparea"
	"github.com/mapnest/mapnest/internal/middleware"
	"github.com/mapnest/mapnest/internal/stream"
)

// PutBoundaryRequest represents the request body for creating or replacing a
// map area's boundary ring.
type PutBoundaryRequest struct {
	Ring geom.Ring `json:"ring"`
}

// BoundaryHandlers holds dependencies for boundary HTTP handlers.
type BoundaryHandlers struct {
	areas       maparea.Repository
	boundaries  boundary.Repository
	broadcaster *stream.Broadcaster
}

// NewBoundaryHandlers creates a new BoundaryHandlers instance.
func NewBoundaryHandlers(areas maparea.Repository, boundaries boundary.Repository, broadcaster *stream.Broadcaster) *BoundaryHandlers {
	return &BoundaryHandlers{areas: areas, boundaries: boundaries, broadcaster: broadcaster}
}

// Resource routes /map-areas/{id}/boundary by method.
func (h *BoundaryHandlers) Resource(w http.ResponseWriter, r *http.Request, mapAreaID int64) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, mapAreaID)
	case http.MethodPut:
		h.put(w, r, mapAreaID)
	case http.MethodDelete:
		h.delete(w, r, mapAreaID)
	default:
		writeMethodNotAllowed(w, r)
	}
}

func (h *BoundaryHandlers) get(w http.ResponseWriter, r *http.Request, mapAreaID int64) {
	b, err := h.boundaries.GetByMapArea(r.Context(), mapAreaID)
	if err != nil {
		if errors.Is(err, boundary.ErrBoundaryNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Map area has no boundary")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load boundary")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// put creates or wholesale-replaces the area's boundary. The ring must pass
// the containment predicate against the parent area's boundary before any
// write happens.
func (h *BoundaryHandlers) put(w http.ResponseWriter, r *http.Request, mapAreaID int64) {
	var req PutBoundaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if err := req.Ring.Validate(); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeDegenerateBoundary)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeDegenerateBoundary,
			"Boundary requires at least three distinct vertices")
		return
	}

	area, err := h.areas.GetByID(r.Context(), mapAreaID)
	if err != nil {
		if errors.Is(err, maparea.ErrMapAreaNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Map area not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load map area")
		return
	}

	if area.ParentID != nil {
		parent, err := h.boundaries.GetByMapArea(r.Context(), *area.ParentID)
		if err != nil && !errors.Is(err, boundary.ErrBoundaryNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load parent boundary")
			return
		}
		if parent != nil {
			contained, err := geom.Contains(req.Ring, parent.Ring)
			if err != nil {
				ctx := middleware.SetErrorCode(r.Context(), ErrCodeDegenerateBoundary)
				WriteError(w, ctx, http.StatusBadRequest, ErrCodeDegenerateBoundary, err.Error())
				return
			}
			if !contained {
				ctx := middleware.SetErrorCode(r.Context(), ErrCodeBoundaryNotContained)
				WriteError(w, ctx, http.StatusBadRequest, ErrCodeBoundaryNotContained,
					"The boundary must be completely within the parent boundary")
				return
			}
		}
	}

	existing, err := h.boundaries.GetByMapArea(r.Context(), mapAreaID)
	switch {
	case err == nil:
		updated := &boundary.Boundary{ID: existing.ID, Ring: req.Ring}
		if err := h.boundaries.Update(r.Context(), updated); err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update boundary")
			return
		}
		h.broadcast(mapAreaID, updated)
		writeJSON(w, http.StatusOK, updated)
	case errors.Is(err, boundary.ErrBoundaryNotFound):
		created := &boundary.Boundary{MapAreaID: mapAreaID, Ring: req.Ring}
		if err := h.boundaries.Create(r.Context(), created); err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create boundary")
			return
		}
		h.broadcast(mapAreaID, created)
		writeJSON(w, http.StatusCreated, created)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load boundary")
	}
}

func (h *BoundaryHandlers) delete(w http.ResponseWriter, r *http.Request, mapAreaID int64) {
	existing, err := h.boundaries.GetByMapArea(r.Context(), mapAreaID)
	if err != nil {
		if errors.Is(err, boundary.ErrBoundaryNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Map area has no boundary")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load boundary")
		return
	}
	if err := h.boundaries.Delete(r.Context(), existing.ID); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to delete boundary")
		return
	}
	h.broadcast(mapAreaID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *BoundaryHandlers) broadcast(mapAreaID int64, b *boundary.Boundary) {
	if h.broadcaster == nil {
		return
	}
	h.broadcaster.Broadcast(&stream.Event{
		Type:      stream.EventBoundaryUpdated,
		MapAreaID: mapAreaID,
		Payload:   b,
	})
}
