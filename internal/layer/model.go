// Package layer provides models, repository, and the active-layer registry
// for map area annotation layers, including read-only inherited copies.
package layer

import (
	"errors"
	"time"
)

// Common errors for layer operations.
var (
	ErrLayerNotFound    = errors.New("layer not found")
	ErrLayerNotEditable = errors.New("layer is not editable")
	ErrInheritedLayer   = errors.New("inherited layers cannot be persisted directly")
	ErrEmptyName        = errors.New("layer name must not be empty")
)

// Layer is a named, visibility-toggled container of annotations scoped to one
// map area. An inherited copy (ParentLayerID set) is a computed, read-only view
// of an ancestor's layer; it is never stored.
type Layer struct {
	ID            int64          `json:"id"`
	MapAreaID     int64          `json:"map_area_id"`
	ParentLayerID *int64         `json:"parent_layer_id,omitempty"`
	Name          string         `json:"name"`
	Visible       bool           `json:"visible"`
	ZIndex        int            `json:"z_index"`
	Editable      bool           `json:"is_editable"`
	Style         map[string]any `json:"style,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Validate checks layer invariants before persistence. Inherited copies are
// computed at read time and must never reach the store.
func (l *Layer) Validate() error {
	if l.Name == "" {
		return ErrEmptyName
	}
	if l.ParentLayerID != nil {
		return ErrInheritedLayer
	}
	return nil
}

// inheritedCopy derives the read-only view of this layer as seen from a
// descendant map area. The copy keeps the source layer's ID so annotations
// keyed by layer ID resolve against it.
func (l *Layer) inheritedCopy(mapAreaID int64) *Layer {
	src := l.ID
	c := *l
	c.MapAreaID = mapAreaID
	c.ParentLayerID = &src
	c.Editable = false
	return &c
}
