// Package boundary provides models and repository for map area boundary rings.
package boundary

import (
	"errors"
	"time"

	"github.com/mapnest/mapnest/internal/geom"
)

// Common errors for boundary operations.
var (
	ErrBoundaryNotFound = errors.New("boundary not found")
	ErrBoundaryExists   = errors.New("map area already has a boundary")
)

// Boundary is the closed polygon ring scoping one map area. A map area owns
// at most one boundary; edits replace the ring wholesale.
type Boundary struct {
	ID        int64     `json:"id"`
	MapAreaID int64     `json:"map_area_id"`
	Ring      geom.Ring `json:"ring"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the ring invariant.
func (b *Boundary) Validate() error {
	return b.Ring.Validate()
}
