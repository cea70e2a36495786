// Package annotation provides models and repository for markable objects
// (markers, lines, polygons, text) owned by annotation layers.
package annotation

import (
	"errors"
	"fmt"
	"time"

	"github.com/mapnest/mapnest/internal/geom"
)

// Kind identifies the shape of a markable object.
type Kind string

// Valid annotation kinds.
const (
	KindMarker  Kind = "marker"
	KindLine    Kind = "line"
	KindPolygon Kind = "polygon"
	KindText    Kind = "text"
)

// Minimum vertex counts per kind.
const (
	MinLinePoints    = 2
	MinPolygonPoints = 3
)

// Common errors for annotation operations.
var (
	ErrAnnotationNotFound = errors.New("annotation not found")
	ErrTooFewPoints       = errors.New("annotation has too few points for its kind")
)

// Annotation is one drawn object belonging to a layer. Markers and text carry
// a single point; lines and polygons carry an ordered point sequence with
// [lat, lng] pairs, polygon rings closed implicitly.
type Annotation struct {
	ID        int64          `json:"id"`
	LayerID   int64          `json:"layer_id"`
	Kind      Kind           `json:"kind"`
	Points    []geom.Point   `json:"points"`
	Style     map[string]any `json:"style,omitempty"`
	Content   string         `json:"content,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Validate checks kind and per-kind geometry arity.
func (a *Annotation) Validate() error {
	switch a.Kind {
	case KindMarker, KindText:
		if len(a.Points) != 1 {
			return fmt.Errorf("%w: %s requires exactly one point", ErrTooFewPoints, a.Kind)
		}
	case KindLine:
		if len(a.Points) < MinLinePoints {
			return fmt.Errorf("%w: line requires at least %d points", ErrTooFewPoints, MinLinePoints)
		}
	case KindPolygon:
		if len(a.Points) < MinPolygonPoints {
			return fmt.Errorf("%w: polygon requires at least %d points", ErrTooFewPoints, MinPolygonPoints)
		}
	default:
		return fmt.Errorf("invalid annotation kind: %q", a.Kind)
	}
	return nil
}
