// Package maparea provides models and repository for the region/suburb/individual
// map hierarchy.
package maparea

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies a node's place in the map hierarchy.
type Kind string

// Valid map area kinds.
const (
	KindRegion     Kind = "region"
	KindSuburb     Kind = "suburb"
	KindIndividual Kind = "individual"
)

// Common errors for map area operations.
var (
	ErrMapAreaNotFound = errors.New("map area not found")
	ErrMissingParent   = errors.New("non-region map areas require a parent")
	ErrRegionHasParent = errors.New("region map areas must not have a parent")
)

// DefaultView is the initial camera position when a map area is opened.
type DefaultView struct {
	CenterLat float64 `json:"center_lat"`
	CenterLng float64 `json:"center_lng"`
	Zoom      float64 `json:"zoom"`
	Bearing   float64 `json:"bearing"`
}

// MapArea is one node of the region -> suburb -> individual tree.
// Its boundary, layers, and annotations cascade on delete.
type MapArea struct {
	ID          int64       `json:"id"`
	ParentID    *int64      `json:"parent_id,omitempty"`
	Name        string      `json:"name"`
	Kind        Kind        `json:"kind"`
	DefaultView DefaultView `json:"default_view"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Validate checks the hierarchy invariants: regions are roots, everything
// else hangs off a parent.
func (m *MapArea) Validate() error {
	switch m.Kind {
	case KindRegion:
		if m.ParentID != nil {
			return ErrRegionHasParent
		}
	case KindSuburb, KindIndividual:
		if m.ParentID == nil {
			return ErrMissingParent
		}
	default:
		return fmt.Errorf("invalid map area kind: %q", m.Kind)
	}
	return nil
}
