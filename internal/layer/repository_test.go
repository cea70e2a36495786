package layer

import (
	"context"
	"errors"
	"testing"
)

func TestCreateValidatesLayer(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, &Layer{MapAreaID: 1}); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("Create(unnamed) = %v, want ErrEmptyName", err)
	}

	parent := int64(7)
	err := repo.Create(ctx, &Layer{MapAreaID: 1, Name: "derived", ParentLayerID: &parent})
	if !errors.Is(err, ErrInheritedLayer) {
		t.Fatalf("Create(inherited) = %v, want ErrInheritedLayer", err)
	}

	l := &Layer{MapAreaID: 1, Name: "streets", Visible: true, Editable: true}
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if l.ID == 0 {
		t.Error("create should assign an ID")
	}
}

func TestListByMapAreaStackingOrder(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	// Create out of stacking order; the same z-index ties break by ID.
	specs := []struct {
		name   string
		zIndex int
	}{
		{"top", 2},
		{"bottom", 0},
		{"middle-a", 1},
		{"middle-b", 1},
	}
	for _, sp := range specs {
		l := &Layer{MapAreaID: 1, Name: sp.name, Visible: true, Editable: true, ZIndex: sp.zIndex}
		if err := repo.Create(ctx, l); err != nil {
			t.Fatalf("create %q: %v", sp.name, err)
		}
	}
	if err := repo.Create(ctx, &Layer{MapAreaID: 2, Name: "elsewhere", Visible: true}); err != nil {
		t.Fatalf("create foreign layer: %v", err)
	}

	got, err := repo.ListByMapArea(ctx, 1)
	if err != nil {
		t.Fatalf("ListByMapArea: %v", err)
	}
	wantOrder := []string{"bottom", "middle-a", "middle-b", "top"}
	if len(got) != len(wantOrder) {
		t.Fatalf("layers = %d, want %d", len(got), len(wantOrder))
	}
	for i, l := range got {
		if l.Name != wantOrder[i] {
			t.Fatalf("order[%d] = %q, want %q", i, l.Name, wantOrder[i])
		}
	}
}

func TestReorderRestacks(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	a := &Layer{MapAreaID: 1, Name: "a", Visible: true, Editable: true, ZIndex: 0}
	b := &Layer{MapAreaID: 1, Name: "b", Visible: true, Editable: true, ZIndex: 1}
	for _, l := range []*Layer{a, b} {
		if err := repo.Create(ctx, l); err != nil {
			t.Fatalf("create %q: %v", l.Name, err)
		}
	}

	err := repo.Reorder(ctx, []ZIndexUpdate{
		{ID: a.ID, ZIndex: 1},
		{ID: b.ID, ZIndex: 0},
		{ID: 9999, ZIndex: 5},
	})
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}

	got, err := repo.ListByMapArea(ctx, 1)
	if err != nil {
		t.Fatalf("ListByMapArea: %v", err)
	}
	if got[0].Name != "b" || got[1].Name != "a" {
		t.Errorf("order after reorder = [%q %q], want [b a]", got[0].Name, got[1].Name)
	}
}

func TestUpdateKeepsOwnership(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	l := &Layer{MapAreaID: 1, Name: "streets", Visible: true, Editable: true}
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}

	l.Name = "roads"
	l.Visible = false
	l.MapAreaID = 42
	if err := repo.Update(ctx, l); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := repo.GetByID(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.MapAreaID != 1 {
		t.Errorf("map area after update = %d, want unchanged 1", got.MapAreaID)
	}
	if got.Name != "roads" || got.Visible {
		t.Error("update did not apply name and visibility")
	}
}

func TestCopySemantics(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	l := &Layer{
		MapAreaID: 1, Name: "styled", Visible: true, Editable: true,
		Style: map[string]any{"color": "#ff0000"},
	}
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	got.Style["color"] = "#00ff00"

	again, _ := repo.GetByID(ctx, l.ID)
	if again.Style["color"] != "#ff0000" {
		t.Error("stored style mutated through a returned copy")
	}
}
