package editor

import (
	"github.com/mapnest/mapnest/internal/annotation"
	"github.com/mapnest/mapnest/internal/geom"
)

// Tool identifies what the drawing surface is currently placing. Annotation
// tools target the active layer; boundary tools target the map hierarchy.
type Tool string

// Drawing tools.
const (
	ToolMarker  Tool = "marker"
	ToolLine    Tool = "line"
	ToolPolygon Tool = "polygon"
	ToolText    Tool = "text"

	// ToolBoundary draws or redraws the open map area's own boundary.
	ToolBoundary Tool = "boundary"
	// ToolSuburb and ToolIndividual draw the boundary of a new child map area.
	ToolSuburb     Tool = "suburb"
	ToolIndividual Tool = "individual"
)

// IsAnnotation reports whether the tool produces an annotation.
func (t Tool) IsAnnotation() bool {
	switch t {
	case ToolMarker, ToolLine, ToolPolygon, ToolText:
		return true
	}
	return false
}

// IsBoundary reports whether the tool produces a boundary ring.
func (t Tool) IsBoundary() bool {
	switch t {
	case ToolBoundary, ToolSuburb, ToolIndividual:
		return true
	}
	return false
}

// AnnotationKind maps an annotation tool to its stored kind.
func (t Tool) AnnotationKind() annotation.Kind {
	return annotation.Kind(t)
}

// SurfaceEvent is the closed set of events the drawing surface emits. The
// engine never inspects raw surface payloads; the transport boundary decodes
// them into one of these variants.
type SurfaceEvent interface {
	surfaceEvent()
}

// DrawStarted fires when the user picks up a drawing tool, before any
// geometry exists.
type DrawStarted struct {
	Tool Tool `json:"tool"`
}

// ShapeCompleted fires when a shape's geometry is finished on the surface.
type ShapeCompleted struct {
	Tool   Tool           `json:"tool"`
	Points []geom.Point   `json:"points"`
	Style  map[string]any `json:"style,omitempty"`
}

// TextCaptured fires when inline text entry for a text annotation ends,
// through completion or loss of focus.
type TextCaptured struct {
	Text string `json:"text"`
}

// EditCommitted fires when the surface finishes an edit of an existing
// drawable (vertex drag, content change).
type EditCommitted struct {
	AnnotationID int64        `json:"annotation_id"`
	Points       []geom.Point `json:"points"`
	Content      *string      `json:"content,omitempty"`
}

// RemovalRequested fires when the user asks to remove a drawable.
type RemovalRequested struct {
	AnnotationID int64 `json:"annotation_id"`
}

// DrawCancelled fires on an explicit cancel signal (interrupt key) while a
// draw is in progress.
type DrawCancelled struct{}

func (DrawStarted) surfaceEvent()      {}
func (ShapeCompleted) surfaceEvent()   {}
func (TextCaptured) surfaceEvent()     {}
func (EditCommitted) surfaceEvent()    {}
func (RemovalRequested) surfaceEvent() {}
func (DrawCancelled) surfaceEvent()    {}
