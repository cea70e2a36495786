package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mapnest/mapnest/internal/middleware"
)

// RouterConfig collects the handler groups mounted by NewRouter. Nil groups
// are skipped so tests can mount a subset.
type RouterConfig struct {
	MapAreas    *MapAreaHandlers
	Boundaries  *BoundaryHandlers
	Layers      *LayerHandlers
	Annotations *AnnotationHandlers
	Editor      *EditorWSHandlers
	Export      *ExportHandlers
	Health      *HealthHandlers
}

// NewRouter builds the API route table:
//
//	POST   /map-areas
//	GET    /map-areas/{id}              PUT/PATCH/DELETE
//	GET    /map-areas/{id}/children
//	GET    /map-areas/{id}/boundary     PUT/DELETE
//	GET    /map-areas/{id}/layers       POST
//	POST   /map-areas/{id}/layers/reorder
//	GET    /map-areas/{id}/editor       (websocket)
//	POST   /map-areas/{id}/export
//	PATCH  /layers/{id}                 PUT/DELETE
//	GET    /layers/{id}/annotations     POST
//	GET    /annotations/{id}            PUT/PATCH/DELETE
//	GET    /health /ready
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	if cfg.MapAreas != nil {
		mux.HandleFunc("/map-areas", cfg.MapAreas.Create)
		mux.HandleFunc("/map-areas/", func(w http.ResponseWriter, r *http.Request) {
			id, rest, ok := parseAreaPath(r.URL.Path)
			if !ok {
				ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
				WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid map area ID")
				return
			}
			switch {
			case rest == "boundary" && cfg.Boundaries != nil:
				cfg.Boundaries.Resource(w, r, id)
			case (rest == "layers" || rest == "layers/reorder") && cfg.Layers != nil:
				cfg.Layers.Collection(w, r, id, strings.Trim(strings.TrimPrefix(rest, "layers"), "/"))
			case rest == "editor" && cfg.Editor != nil:
				cfg.Editor.Serve(w, r, id)
			case rest == "export" && cfg.Export != nil:
				cfg.Export.Create(w, r, id)
			default:
				cfg.MapAreas.Resource(w, r)
			}
		})
	}

	if cfg.Layers != nil {
		mux.HandleFunc("/layers/", func(w http.ResponseWriter, r *http.Request) {
			id, rest, ok := parseLayerPath(r.URL.Path)
			if !ok {
				ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
				WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid layer ID")
				return
			}
			if rest == "annotations" && cfg.Annotations != nil {
				cfg.Annotations.Collection(w, r, id)
				return
			}
			cfg.Layers.Item(w, r)
		})
	}

	if cfg.Annotations != nil {
		mux.HandleFunc("/annotations/", cfg.Annotations.Item)
	}

	if cfg.Health != nil {
		mux.HandleFunc("/health", cfg.Health.Health)
		mux.HandleFunc("/ready", cfg.Health.Ready)
	}

	return mux
}

// parseLayerPath splits "/layers/{id}[/rest]" into the ID and the trailing
// segment.
func parseLayerPath(path string) (int64, string, bool) {
	trimmed := strings.TrimPrefix(path, "/layers/")
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
