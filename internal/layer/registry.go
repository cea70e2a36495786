package layer

import (
	"context"
	"fmt"

	"github.com/mapnest/mapnest/internal/maparea"
)

// Registry is the in-memory view of one map area's layers: its own editable
// layers plus read-only copies inherited from every ancestor, and the single
// active layer eligible to receive annotation mutations.
//
// A Registry belongs to one editor session and is driven from that session's
// event loop; it does no locking of its own.
type Registry struct {
	layers Repository
	areas  maparea.Repository

	mapAreaID int64
	loaded    bool
	editable  []*Layer
	inherited []*Layer
	activeID  int64 // 0 means no active layer
}

// NewRegistry creates a Registry over the given repositories.
func NewRegistry(layers Repository, areas maparea.Repository) *Registry {
	return &Registry{layers: layers, areas: areas}
}

// Load populates the registry for a map area: the area's own layers become the
// editable set, ancestor layers are exposed as read-only inherited copies.
// Fails with maparea.ErrMapAreaNotFound for an unknown area; an area with zero
// layers loads successfully with empty sets. The active pointer is reconciled
// after every load.
func (r *Registry) Load(ctx context.Context, mapAreaID int64) error {
	area, err := r.areas.GetByID(ctx, mapAreaID)
	if err != nil {
		return err
	}

	own, err := r.layers.ListByMapArea(ctx, mapAreaID)
	if err != nil {
		return fmt.Errorf("failed to load layers for map area %d: %w", mapAreaID, err)
	}

	inherited, err := r.collectInherited(ctx, area)
	if err != nil {
		return err
	}

	editable := make([]*Layer, 0, len(own))
	for _, l := range own {
		if l.Editable {
			editable = append(editable, l)
		} else {
			// Own layers flagged read-only render with the inherited set.
			inherited = append(inherited, l)
		}
	}

	r.mapAreaID = mapAreaID
	r.loaded = true
	r.editable = editable
	r.inherited = inherited
	r.ReconcileActive()
	return nil
}

// Reload refreshes the current map area's layer sets, keeping the active
// pointer when its layer survived.
func (r *Registry) Reload(ctx context.Context) error {
	if !r.loaded {
		return fmt.Errorf("registry has no map area loaded")
	}
	return r.Load(ctx, r.mapAreaID)
}

// Reset clears all state when a map area editor session closes.
func (r *Registry) Reset() {
	r.mapAreaID = 0
	r.loaded = false
	r.editable = nil
	r.inherited = nil
	r.activeID = 0
}

// collectInherited walks the ancestor chain and derives read-only copies of
// every ancestor's own layers, nearest ancestor first.
func (r *Registry) collectInherited(ctx context.Context, area *maparea.MapArea) ([]*Layer, error) {
	var inherited []*Layer
	parentID := area.ParentID
	for parentID != nil {
		parent, err := r.areas.GetByID(ctx, *parentID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve ancestor map area %d: %w", *parentID, err)
		}
		parentLayers, err := r.layers.ListByMapArea(ctx, parent.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load ancestor layers for map area %d: %w", parent.ID, err)
		}
		for _, l := range parentLayers {
			inherited = append(inherited, l.inheritedCopy(area.ID))
		}
		parentID = parent.ParentID
	}
	return inherited, nil
}

// MapAreaID returns the loaded map area, or 0 when nothing is loaded.
func (r *Registry) MapAreaID() int64 {
	return r.mapAreaID
}

// Editable returns the editable layer set in (z_index, id) order.
func (r *Registry) Editable() []*Layer {
	return r.editable
}

// Inherited returns the read-only layer set.
func (r *Registry) Inherited() []*Layer {
	return r.inherited
}

// All returns every visible-to-this-area layer, editable first.
func (r *Registry) All() []*Layer {
	all := make([]*Layer, 0, len(r.editable)+len(r.inherited))
	all = append(all, r.editable...)
	all = append(all, r.inherited...)
	return all
}

// ActiveID returns the active layer ID and whether one is selected.
func (r *Registry) ActiveID() (int64, bool) {
	return r.activeID, r.activeID != 0
}

// Active returns the active layer, or nil when none is selected.
func (r *Registry) Active() *Layer {
	for _, l := range r.editable {
		if l.ID == r.activeID {
			return l
		}
	}
	return nil
}

// SelectActive points the active selection at an editable layer.
// Selecting a layer outside the editable set is an error and leaves the
// current selection untouched.
func (r *Registry) SelectActive(layerID int64) error {
	for _, l := range r.editable {
		if l.ID == layerID {
			r.activeID = layerID
			return nil
		}
	}
	for _, l := range r.inherited {
		if l.ID == layerID {
			return ErrLayerNotEditable
		}
	}
	return ErrLayerNotFound
}

// ClearActive empties the active selection.
func (r *Registry) ClearActive() {
	r.activeID = 0
}

// ReconcileActive re-points the active selection after the editable set
// changed. The rule, in order: an empty editable set clears the selection; a
// stale or missing selection moves to the first editable layer (lowest ID); a
// still-valid selection is left untouched. This keeps the pointer from ever
// referencing a deleted or non-editable layer.
func (r *Registry) ReconcileActive() {
	if len(r.editable) == 0 {
		r.activeID = 0
		return
	}
	for _, l := range r.editable {
		if l.ID == r.activeID {
			return
		}
	}
	first := r.editable[0]
	for _, l := range r.editable[1:] {
		if l.ID < first.ID {
			first = l
		}
	}
	r.activeID = first.ID
}

// IsEditable reports whether a layer ID belongs to the editable set.
func (r *Registry) IsEditable(layerID int64) bool {
	for _, l := range r.editable {
		if l.ID == layerID {
			return true
		}
	}
	return false
}

// Visibility builds the layer-ID to visibility map consumed by the render set.
func (r *Registry) Visibility() map[int64]bool {
	vis := make(map[int64]bool, len(r.editable)+len(r.inherited))
	for _, l := range r.editable {
		vis[l.ID] = l.Visible
	}
	for _, l := range r.inherited {
		vis[l.ID] = l.Visible
	}
	return vis
}
