// Package api provides HTTP handlers for the MapNest API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/mapnest/mapnest/internal/maparea"
	"github.com/mapnest/mapnest/internal/middleware"
	"github.com/mapnest/mapnest/internal/validate"
)

// CreateMapAreaRequest represents the request body for creating a map area.
type CreateMapAreaRequest struct {
	ParentID    *int64               `json:"parent_id,omitempty"`
	Name        string               `json:"name"`
	Kind        string               `json:"kind"`
	DefaultView *maparea.DefaultView `json:"default_view,omitempty"`
}

// UpdateMapAreaRequest represents the request body for updating a map area.
// Kind and parent are immutable after creation.
type UpdateMapAreaRequest struct {
	Name        *string              `json:"name,omitempty"`
	DefaultView *maparea.DefaultView `json:"default_view,omitempty"`
}

// MapAreaHandlers holds dependencies for map area HTTP handlers.
type MapAreaHandlers struct {
	areas maparea.Repository
}

// NewMapAreaHandlers creates a new MapAreaHandlers instance.
func NewMapAreaHandlers(areas maparea.Repository) *MapAreaHandlers {
	return &MapAreaHandlers{areas: areas}
}

// Create handles POST /map-areas.
func (h *MapAreaHandlers) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}

	var req CreateMapAreaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	name, err := validate.MapAreaName(req.Name)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid map area name: "+err.Error())
		return
	}

	area := &maparea.MapArea{
		ParentID: req.ParentID,
		Name:     name,
		Kind:     maparea.Kind(req.Kind),
	}
	if req.DefaultView != nil {
		area.DefaultView = *req.DefaultView
	}
	if err := area.Validate(); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	if err := h.areas.Create(r.Context(), area); err != nil {
		if errors.Is(err, maparea.ErrMapAreaNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Parent map area not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create map area")
		return
	}

	writeJSON(w, http.StatusCreated, area)
}

// Resource routes /map-areas/{id} and /map-areas/{id}/children by method and
// trailing path segment.
func (h *MapAreaHandlers) Resource(w http.ResponseWriter, r *http.Request) {
	id, rest, ok := parseAreaPath(r.URL.Path)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid map area ID")
		return
	}

	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.get(w, r, id)
	case rest == "" && (r.Method == http.MethodPut || r.Method == http.MethodPatch):
		h.update(w, r, id)
	case rest == "" && r.Method == http.MethodDelete:
		h.delete(w, r, id)
	case rest == "children" && r.Method == http.MethodGet:
		h.listChildren(w, r, id)
	default:
		writeMethodNotAllowed(w, r)
	}
}

func (h *MapAreaHandlers) get(w http.ResponseWriter, r *http.Request, id int64) {
	area, err := h.areas.GetByID(r.Context(), id)
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
	writeJSON(w, http.StatusOK, area)
}

func (h *MapAreaHandlers) listChildren(w http.ResponseWriter, r *http.Request, id int64) {
	children, err := h.areas.ListChildren(r.Context(), id)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list children")
		return
	}
	if children == nil {
		children = []*maparea.MapArea{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"map_areas": children})
}

func (h *MapAreaHandlers) update(w http.ResponseWriter, r *http.Request, id int64) {
	var req UpdateMapAreaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	area, err := h.areas.GetByID(r.Context(), id)
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

	if req.Name != nil {
		name, err := validate.MapAreaName(*req.Name)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid map area name: "+err.Error())
			return
		}
		area.Name = name
	}
	if req.DefaultView != nil {
		area.DefaultView = *req.DefaultView
	}

	if err := h.areas.Update(r.Context(), area); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update map area")
		return
	}
	writeJSON(w, http.StatusOK, area)
}

func (h *MapAreaHandlers) delete(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.areas.Delete(r.Context(), id); err != nil {
		if errors.Is(err, maparea.ErrMapAreaNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Map area not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to delete map area")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseAreaPath splits "/map-areas/{id}[/rest]" into the ID and the trailing
// segment.
func parseAreaPath(path string) (int64, string, bool) {
	trimmed := strings.TrimPrefix(path, "/map-areas/")
	parts := strings.SplitN(trimmed, "/", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	rest := ""
	if len(parts) == 2 {
		rest = strings.Trim(parts[1], "/")
	}
	return id, rest, true
}
