package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/mapnest/mapnest/internal/annotation"
	"github.com/mapnest/mapnest/internal/layer"
	"github.com/mapnest/mapnest/internal/maparea"
	"github.com/mapnest/mapnest/internal/middleware"
	"github.com/mapnest/mapnest/internal/stream"
	"github.com/mapnest/mapnest/internal/validate"
)

// CreateLayerRequest represents the request body for creating a layer.
type CreateLayerRequest struct {
	Name    string         `json:"name"`
	Visible *bool          `json:"visible,omitempty"`
	ZIndex  int            `json:"z_index"`
	Style   map[string]any `json:"style,omitempty"`
}

// UpdateLayerRequest represents the request body for updating a layer.
// Absent fields keep their current values.
type UpdateLayerRequest struct {
	Name    *string        `json:"name,omitempty"`
	Visible *bool          `json:"visible,omitempty"`
	ZIndex  *int           `json:"z_index,omitempty"`
	Style   map[string]any `json:"style,omitempty"`
}

// ReorderLayersRequest represents the request body for restacking layers.
type ReorderLayersRequest struct {
	Layers []layer.ZIndexUpdate `json:"layers"`
}

// LayerListResponse is the combined editable + inherited layer view of one
// map area.
type LayerListResponse struct {
	Editable  []*layer.Layer `json:"editable"`
	Inherited []*layer.Layer `json:"inherited"`
}

// LayerHandlers holds dependencies for layer HTTP handlers.
type LayerHandlers struct {
	areas       maparea.Repository
	layers      layer.Repository
	annotations annotation.Repository
	broadcaster *stream.Broadcaster
}

// NewLayerHandlers creates a new LayerHandlers instance.
func NewLayerHandlers(areas maparea.Repository, layers layer.Repository, annotations annotation.Repository, broadcaster *stream.Broadcaster) *LayerHandlers {
	return &LayerHandlers{areas: areas, layers: layers, annotations: annotations, broadcaster: broadcaster}
}

// Collection routes /map-areas/{id}/layers and /map-areas/{id}/layers/reorder.
func (h *LayerHandlers) Collection(w http.ResponseWriter, r *http.Request, mapAreaID int64, rest string) {
	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.list(w, r, mapAreaID)
	case rest == "" && r.Method == http.MethodPost:
		h.create(w, r, mapAreaID)
	case rest == "reorder" && r.Method == http.MethodPost:
		h.reorder(w, r, mapAreaID)
	default:
		writeMethodNotAllowed(w, r)
	}
}

// list returns the map area's own layers plus its computed inherited copies,
// the same partition the editor session sees.
func (h *LayerHandlers) list(w http.ResponseWriter, r *http.Request, mapAreaID int64) {
	reg := layer.NewRegistry(h.layers, h.areas)
	if err := reg.Load(r.Context(), mapAreaID); err != nil {
		if errors.Is(err, maparea.ErrMapAreaNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Map area not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load layers")
		return
	}

	resp := LayerListResponse{Editable: reg.Editable(), Inherited: reg.Inherited()}
	if resp.Editable == nil {
		resp.Editable = []*layer.Layer{}
	}
	if resp.Inherited == nil {
		resp.Inherited = []*layer.Layer{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *LayerHandlers) create(w http.ResponseWriter, r *http.Request, mapAreaID int64) {
	var req CreateLayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	name, err := validate.LayerName(req.Name)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid layer name: "+err.Error())
		return
	}

	if _, err := h.areas.GetByID(r.Context(), mapAreaID); err != nil {
		if errors.Is(err, maparea.ErrMapAreaNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Map area not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load map area")
		return
	}

	// New layers start visible unless the request says otherwise.
	visible := true
	if req.Visible != nil {
		visible = *req.Visible
	}
	l := &layer.Layer{
		MapAreaID: mapAreaID,
		Name:      name,
		Visible:   visible,
		ZIndex:    req.ZIndex,
		Editable:  true,
		Style:     req.Style,
	}
	if err := h.layers.Create(r.Context(), l); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create layer")
		return
	}

	h.broadcastChanged(mapAreaID)
	writeJSON(w, http.StatusCreated, l)
}

func (h *LayerHandlers) reorder(w http.ResponseWriter, r *http.Request, mapAreaID int64) {
	var req ReorderLayersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if len(req.Layers) == 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "layers must not be empty")
		return
	}

	if err := h.layers.Reorder(r.Context(), req.Layers); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to reorder layers")
		return
	}

	h.broadcastChanged(mapAreaID)
	w.WriteHeader(http.StatusNoContent)
}

// Item routes /layers/{id} and /layers/{id}/annotations.
func (h *LayerHandlers) Item(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/layers/")
	parts := strings.SplitN(trimmed, "/", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid layer ID")
		return
	}
	rest := ""
	if len(parts) == 2 {
		rest = strings.Trim(parts[1], "/")
	}

	switch {
	case rest == "" && (r.Method == http.MethodPatch || r.Method == http.MethodPut):
		h.update(w, r, id)
	case rest == "" && r.Method == http.MethodDelete:
		h.delete(w, r, id)
	default:
		writeMethodNotAllowed(w, r)
	}
}

func (h *LayerHandlers) update(w http.ResponseWriter, r *http.Request, id int64) {
	var req UpdateLayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	l, err := h.layers.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, layer.ErrLayerNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Layer not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load layer")
		return
	}

	if req.Name != nil {
		name, err := validate.LayerName(*req.Name)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid layer name: "+err.Error())
			return
		}
		l.Name = name
	}
	if req.Visible != nil {
		l.Visible = *req.Visible
	}
	if req.ZIndex != nil {
		l.ZIndex = *req.ZIndex
	}
	if req.Style != nil {
		l.Style = req.Style
	}

	if err := h.layers.Update(r.Context(), l); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update layer")
		return
	}

	h.broadcastChanged(l.MapAreaID)
	writeJSON(w, http.StatusOK, l)
}

// delete removes a layer and every annotation on it, then lets subscribers
// know the layer sets changed so open sessions reconcile their active layer.
func (h *LayerHandlers) delete(w http.ResponseWriter, r *http.Request, id int64) {
	l, err := h.layers.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, layer.ErrLayerNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Layer not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load layer")
		return
	}

	if _, err := h.annotations.DeleteByLayer(r.Context(), id); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to delete layer annotations")
		return
	}
	if err := h.layers.Delete(r.Context(), id); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to delete layer")
		return
	}

	h.broadcastChanged(l.MapAreaID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *LayerHandlers) broadcastChanged(mapAreaID int64) {
	if h.broadcaster == nil {
		return
	}
	h.broadcaster.Broadcast(&stream.Event{
		Type:      stream.EventLayersChanged,
		MapAreaID: mapAreaID,
	})
}
