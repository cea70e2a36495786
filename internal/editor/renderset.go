package editor

import (
	"github.com/mapnest/mapnest/internal/annotation"
	"github.com/mapnest/mapnest/internal/geom"
	"github.com/mapnest/mapnest/internal/layer"
)

// Drawable is the live, on-surface representation of one annotation. Editable
// drawables expose vertex handles and accept edit/removal transitions;
// protected drawables ignore them.
type Drawable struct {
	AnnotationID int64           `json:"annotation_id"`
	LayerID      int64           `json:"layer_id"`
	Kind         annotation.Kind `json:"kind"`
	Points       []geom.Point    `json:"points"`
	Style        map[string]any  `json:"style,omitempty"`
	Content      string          `json:"content,omitempty"`
	Editable     bool            `json:"editable"`

	label      string
	labelBound bool
}

// BindLabel attaches the drawable's single label. A second bind is skipped so
// a surface library's default tooltip can never double up with ours; it
// reports whether this call bound the label.
func (d *Drawable) BindLabel(label string) bool {
	if d.labelBound {
		return false
	}
	d.label = label
	d.labelBound = true
	return true
}

// Label returns the bound label and whether one is bound.
func (d *Drawable) Label() (string, bool) {
	return d.label, d.labelBound
}

// BuildRenderSet derives the full drawable set from the annotation list and
// the layer registry. Annotations on layers whose visibility is off are
// excluded outright, all four kinds alike; survivors on the active layer are
// editable, everything else is protected. Callers discard the previous set
// wholesale, so no stale drawables survive a dependency change.
func BuildRenderSet(annotations []*annotation.Annotation, reg *layer.Registry) []*Drawable {
	visibility := reg.Visibility()
	activeID, hasActive := reg.ActiveID()

	drawables := make([]*Drawable, 0, len(annotations))
	for _, a := range annotations {
		visible, known := visibility[a.LayerID]
		if !known || !visible {
			continue
		}

		d := &Drawable{
			AnnotationID: a.ID,
			LayerID:      a.LayerID,
			Kind:         a.Kind,
			Points:       append([]geom.Point(nil), a.Points...),
			Style:        a.Style,
			Content:      a.Content,
			Editable:     hasActive && a.LayerID == activeID,
		}
		switch a.Kind {
		case annotation.KindMarker, annotation.KindPolygon, annotation.KindText:
			if a.Content != "" {
				d.BindLabel(a.Content)
			}
		}
		drawables = append(drawables, d)
	}
	return drawables
}
