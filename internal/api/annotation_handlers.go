package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/mapnest/mapnest/internal/annotation"
	"github.com/mapnest/mapnest/internal/color"
	"github.com/mapnest/mapnest/internal/geom"
	"github.com/mapnest/mapnest/internal/layer"
	"github.com/mapnest/mapnest/internal/middleware"
	"github.com/mapnest/mapnest/internal/stream"
	"github.com/mapnest/mapnest/internal/validate"
)

// CreateAnnotationRequest represents the request body for creating an
// annotation on a layer.
type CreateAnnotationRequest struct {
	Kind    string         `json:"kind"`
	Points  []geom.Point   `json:"points"`
	Style   map[string]any `json:"style,omitempty"`
	Content string         `json:"content,omitempty"`
}

// UpdateAnnotationRequest represents the request body for updating an
// annotation's geometry, style, or content.
type UpdateAnnotationRequest struct {
	Points  []geom.Point   `json:"points,omitempty"`
	Style   map[string]any `json:"style,omitempty"`
	Content *string        `json:"content,omitempty"`
}

// AnnotationHandlers holds dependencies for annotation HTTP handlers.
type AnnotationHandlers struct {
	layers      layer.Repository
	annotations annotation.Repository
	broadcaster *stream.Broadcaster
}

// NewAnnotationHandlers creates a new AnnotationHandlers instance.
func NewAnnotationHandlers(layers layer.Repository, annotations annotation.Repository, broadcaster *stream.Broadcaster) *AnnotationHandlers {
	return &AnnotationHandlers{layers: layers, annotations: annotations, broadcaster: broadcaster}
}

// Collection routes /layers/{id}/annotations.
func (h *AnnotationHandlers) Collection(w http.ResponseWriter, r *http.Request, layerID int64) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r, layerID)
	case http.MethodPost:
		h.create(w, r, layerID)
	default:
		writeMethodNotAllowed(w, r)
	}
}

func (h *AnnotationHandlers) list(w http.ResponseWriter, r *http.Request, layerID int64) {
	if _, err := h.layers.GetByID(r.Context(), layerID); err != nil {
		if errors.Is(err, layer.ErrLayerNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Layer not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load layer")
		return
	}

	list, err := h.annotations.ListByLayer(r.Context(), layerID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list annotations")
		return
	}
	if list == nil {
		list = []*annotation.Annotation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"annotations": list})
}

func (h *AnnotationHandlers) create(w http.ResponseWriter, r *http.Request, layerID int64) {
	var req CreateAnnotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	content, err := validate.AnnotationContent(req.Content)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid content: "+err.Error())
		return
	}
	if err := validateStyleColor(req.Style); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	a := &annotation.Annotation{
		LayerID: layerID,
		Kind:    annotation.Kind(req.Kind),
		Points:  req.Points,
		Style:   req.Style,
		Content: content,
	}
	if err := h.annotations.Create(r.Context(), a); err != nil {
		h.writeCreateError(w, r, err)
		return
	}

	h.broadcast(r.Context(), stream.EventAnnotationCreated, a)
	writeJSON(w, http.StatusCreated, a)
}

func (h *AnnotationHandlers) writeCreateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, layer.ErrLayerNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Layer not found")
	case errors.Is(err, layer.ErrLayerNotEditable):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeLayerNotEditable)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeLayerNotEditable,
			"Annotations can only be created on editable layers")
	case errors.Is(err, annotation.ErrTooFewPoints):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create annotation")
	}
}

// validateStyleColor checks the optional style color. Other style keys stay
// free-form; the renderer ignores what it does not understand.
func validateStyleColor(style map[string]any) error {
	hex, ok := style["color"].(string)
	if !ok {
		return nil
	}
	if _, err := color.Parse(hex); err != nil {
		return err
	}
	return nil
}

// Item routes /annotations/{id} by method.
func (h *AnnotationHandlers) Item(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/annotations/"), "/")
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || id <= 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid annotation ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut, http.MethodPatch:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		writeMethodNotAllowed(w, r)
	}
}

func (h *AnnotationHandlers) get(w http.ResponseWriter, r *http.Request, id int64) {
	a, err := h.annotations.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, annotation.ErrAnnotationNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Annotation not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load annotation")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AnnotationHandlers) update(w http.ResponseWriter, r *http.Request, id int64) {
	var req UpdateAnnotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	a, err := h.annotations.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, annotation.ErrAnnotationNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Annotation not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load annotation")
		return
	}

	if req.Points != nil {
		a.Points = req.Points
	}
	if req.Style != nil {
		if err := validateStyleColor(req.Style); err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		a.Style = req.Style
	}
	if req.Content != nil {
		content, err := validate.AnnotationContent(*req.Content)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid content: "+err.Error())
			return
		}
		a.Content = content
	}

	if err := h.annotations.Update(r.Context(), a); err != nil {
		if errors.Is(err, annotation.ErrTooFewPoints) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update annotation")
		return
	}

	h.broadcast(r.Context(), stream.EventAnnotationUpdated, a)
	writeJSON(w, http.StatusOK, a)
}

func (h *AnnotationHandlers) delete(w http.ResponseWriter, r *http.Request, id int64) {
	a, err := h.annotations.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, annotation.ErrAnnotationNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Annotation not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load annotation")
		return
	}

	if err := h.annotations.Delete(r.Context(), id); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to delete annotation")
		return
	}

	h.broadcast(r.Context(), stream.EventAnnotationDeleted, a)
	w.WriteHeader(http.StatusNoContent)
}

// broadcast publishes an annotation change to the owning layer's map area.
func (h *AnnotationHandlers) broadcast(ctx context.Context, eventType string, a *annotation.Annotation) {
	if h.broadcaster == nil {
		return
	}
	l, err := h.layers.GetByID(ctx, a.LayerID)
	if err != nil {
		return
	}
	h.broadcaster.Broadcast(&stream.Event{
		Type:      eventType,
		MapAreaID: l.MapAreaID,
		Payload:   a,
	})
}
