package annotation

import (
	"context"
	"errors"
	"testing"

	"github.com/mapnest/mapnest/internal/geom"
	"github.com/mapnest/mapnest/internal/layer"
)

// newTestLayers seeds one editable and one read-only layer and returns the
// repository plus both IDs.
func newTestLayers(t *testing.T) (*layer.InMemoryRepository, int64, int64) {
	t.Helper()
	ctx := context.Background()
	layers := layer.NewInMemoryRepository()

	editable := &layer.Layer{MapAreaID: 1, Name: "own", Visible: true, Editable: true}
	frozen := &layer.Layer{MapAreaID: 1, Name: "frozen", Visible: true, Editable: false}
	for _, l := range []*layer.Layer{editable, frozen} {
		if err := layers.Create(ctx, l); err != nil {
			t.Fatalf("create layer %q: %v", l.Name, err)
		}
	}
	return layers, editable.ID, frozen.ID
}

func TestCreateRevalidatesLayer(t *testing.T) {
	layers, editableID, frozenID := newTestLayers(t)
	repo := NewInMemoryRepository(layers)
	ctx := context.Background()

	tests := []struct {
		name    string
		layerID int64
		wantErr error
	}{
		{"editable layer", editableID, nil},
		{"read-only layer", frozenID, layer.ErrLayerNotEditable},
		{"unknown layer", 9999, layer.ErrLayerNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Annotation{
				LayerID: tt.layerID,
				Kind:    KindMarker,
				Points:  []geom.Point{{Lat: 1, Lng: 1}},
			}
			err := repo.Create(ctx, a)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && a.ID == 0 {
				t.Error("create should assign an ID")
			}
		})
	}
}

func TestValidateArity(t *testing.T) {
	one := []geom.Point{{Lat: 1, Lng: 1}}
	two := []geom.Point{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}
	three := []geom.Point{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}, {Lat: 3, Lng: 1}}

	tests := []struct {
		name    string
		a       Annotation
		wantErr bool
	}{
		{"marker one point", Annotation{Kind: KindMarker, Points: one}, false},
		{"marker two points", Annotation{Kind: KindMarker, Points: two}, true},
		{"text one point", Annotation{Kind: KindText, Points: one}, false},
		{"text no points", Annotation{Kind: KindText}, true},
		{"line two points", Annotation{Kind: KindLine, Points: two}, false},
		{"line one point", Annotation{Kind: KindLine, Points: one}, true},
		{"polygon three points", Annotation{Kind: KindPolygon, Points: three}, false},
		{"polygon two points", Annotation{Kind: KindPolygon, Points: two}, true},
		{"unknown kind", Annotation{Kind: "scribble", Points: one}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.a.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestListByLayersInCreationOrder(t *testing.T) {
	layers, editableID, _ := newTestLayers(t)
	repo := NewInMemoryRepository(layers)
	ctx := context.Background()

	other := &layer.Layer{MapAreaID: 1, Name: "other", Visible: true, Editable: true}
	if err := layers.Create(ctx, other); err != nil {
		t.Fatalf("create layer: %v", err)
	}

	var ids []int64
	for i, layerID := range []int64{editableID, other.ID, editableID} {
		a := &Annotation{
			LayerID: layerID,
			Kind:    KindMarker,
			Points:  []geom.Point{{Lat: float64(i), Lng: float64(i)}},
		}
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("create annotation %d: %v", i, err)
		}
		ids = append(ids, a.ID)
	}

	got, err := repo.ListByLayers(ctx, []int64{editableID, other.ID})
	if err != nil {
		t.Fatalf("ListByLayers: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("annotations = %d, want 3", len(got))
	}
	for i, a := range got {
		if a.ID != ids[i] {
			t.Fatalf("order[%d] = %d, want creation order %v", i, a.ID, ids)
		}
	}

	only, err := repo.ListByLayer(ctx, other.ID)
	if err != nil {
		t.Fatalf("ListByLayer: %v", err)
	}
	if len(only) != 1 || only[0].ID != ids[1] {
		t.Errorf("ListByLayer = %v, want just annotation %d", only, ids[1])
	}
}

func TestUpdatePreservesOwnership(t *testing.T) {
	layers, editableID, _ := newTestLayers(t)
	repo := NewInMemoryRepository(layers)
	ctx := context.Background()

	a := &Annotation{
		LayerID: editableID,
		Kind:    KindMarker,
		Points:  []geom.Point{{Lat: 1, Lng: 1}},
		Content: "before",
	}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// An update cannot move the annotation to another layer.
	updated := &Annotation{
		ID:      a.ID,
		LayerID: 9999,
		Kind:    KindMarker,
		Points:  []geom.Point{{Lat: 2, Lng: 2}},
		Content: "after",
	}
	if err := repo.Update(ctx, updated); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.LayerID != editableID {
		t.Errorf("layer after update = %d, want unchanged %d", got.LayerID, editableID)
	}
	if got.Content != "after" || got.Points[0].Lat != 2 {
		t.Error("update did not apply geometry and content")
	}
}

func TestDeleteByLayer(t *testing.T) {
	layers, editableID, _ := newTestLayers(t)
	repo := NewInMemoryRepository(layers)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		a := &Annotation{
			LayerID: editableID,
			Kind:    KindMarker,
			Points:  []geom.Point{{Lat: float64(i), Lng: 0}},
		}
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("create annotation %d: %v", i, err)
		}
	}

	n, err := repo.DeleteByLayer(ctx, editableID)
	if err != nil {
		t.Fatalf("DeleteByLayer: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted = %d, want 3", n)
	}
	left, _ := repo.ListByLayer(ctx, editableID)
	if len(left) != 0 {
		t.Errorf("annotations left = %d, want 0", len(left))
	}
}
