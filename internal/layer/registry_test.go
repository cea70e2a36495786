package layer

import (
	"context"
	"errors"
	"testing"

	"github.com/mapnest/mapnest/internal/maparea"
)

// registryFixture is a three-level hierarchy: region -> suburb -> individual,
// each with its own layers.
type registryFixture struct {
	areas  *maparea.InMemoryRepository
	layers *InMemoryRepository

	region     *maparea.MapArea
	suburb     *maparea.MapArea
	individual *maparea.MapArea

	regionBase *Layer
	suburbA    *Layer
	suburbB    *Layer
	indivOwn   *Layer
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()
	ctx := context.Background()

	f := &registryFixture{
		areas:  maparea.NewInMemoryRepository(),
		layers: NewInMemoryRepository(),
	}

	f.region = &maparea.MapArea{Name: "Northside", Kind: maparea.KindRegion}
	if err := f.areas.Create(ctx, f.region); err != nil {
		t.Fatalf("create region: %v", err)
	}
	f.suburb = &maparea.MapArea{ParentID: &f.region.ID, Name: "Milltown", Kind: maparea.KindSuburb}
	if err := f.areas.Create(ctx, f.suburb); err != nil {
		t.Fatalf("create suburb: %v", err)
	}
	f.individual = &maparea.MapArea{ParentID: &f.suburb.ID, Name: "Old Mill", Kind: maparea.KindIndividual}
	if err := f.areas.Create(ctx, f.individual); err != nil {
		t.Fatalf("create individual: %v", err)
	}

	f.regionBase = &Layer{MapAreaID: f.region.ID, Name: "base", Visible: true, Editable: true}
	f.suburbA = &Layer{MapAreaID: f.suburb.ID, Name: "streets", Visible: true, Editable: true, ZIndex: 0}
	f.suburbB = &Layer{MapAreaID: f.suburb.ID, Name: "hidden", Visible: false, Editable: true, ZIndex: 1}
	f.indivOwn = &Layer{MapAreaID: f.individual.ID, Name: "floorplan", Visible: true, Editable: true}
	for _, l := range []*Layer{f.regionBase, f.suburbA, f.suburbB, f.indivOwn} {
		if err := f.layers.Create(ctx, l); err != nil {
			t.Fatalf("create layer %q: %v", l.Name, err)
		}
	}
	return f
}

func TestRegistryLoadPartitionsLayers(t *testing.T) {
	f := newRegistryFixture(t)
	r := NewRegistry(f.layers, f.areas)

	if err := r.Load(context.Background(), f.suburb.ID); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := len(r.Editable()); got != 2 {
		t.Errorf("editable layers = %d, want 2", got)
	}
	if got := len(r.Inherited()); got != 1 {
		t.Fatalf("inherited layers = %d, want 1", got)
	}

	inh := r.Inherited()[0]
	if inh.ID != f.regionBase.ID {
		t.Errorf("inherited layer ID = %d, want source ID %d", inh.ID, f.regionBase.ID)
	}
	if inh.Editable {
		t.Error("inherited copy must be read-only")
	}
	if inh.ParentLayerID == nil || *inh.ParentLayerID != f.regionBase.ID {
		t.Error("inherited copy should point at its source layer")
	}
}

func TestRegistryInheritsAcrossTwoLevels(t *testing.T) {
	f := newRegistryFixture(t)
	r := NewRegistry(f.layers, f.areas)

	if err := r.Load(context.Background(), f.individual.ID); err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Nearest ancestor first: both suburb layers, then the region's.
	inh := r.Inherited()
	if len(inh) != 3 {
		t.Fatalf("inherited layers = %d, want 3", len(inh))
	}
	if inh[0].ID != f.suburbA.ID || inh[2].ID != f.regionBase.ID {
		t.Errorf("inheritance order = [%d %d %d], want nearest ancestor first",
			inh[0].ID, inh[1].ID, inh[2].ID)
	}
}

func TestRegistryLoadUnknownArea(t *testing.T) {
	f := newRegistryFixture(t)
	r := NewRegistry(f.layers, f.areas)

	err := r.Load(context.Background(), 9999)
	if !errors.Is(err, maparea.ErrMapAreaNotFound) {
		t.Fatalf("Load(unknown) = %v, want ErrMapAreaNotFound", err)
	}
}

func TestRegistrySelectActive(t *testing.T) {
	f := newRegistryFixture(t)
	r := NewRegistry(f.layers, f.areas)
	if err := r.Load(context.Background(), f.suburb.ID); err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name    string
		layerID int64
		wantErr error
	}{
		{"editable layer", f.suburbB.ID, nil},
		{"inherited layer", f.regionBase.ID, ErrLayerNotEditable},
		{"unknown layer", 9999, ErrLayerNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.SelectActive(tt.layerID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SelectActive(%d) = %v, want %v", tt.layerID, err, tt.wantErr)
			}
			if tt.wantErr == nil {
				if got, _ := r.ActiveID(); got != tt.layerID {
					t.Errorf("active = %d, want %d", got, tt.layerID)
				}
			}
		})
	}

	// A failed selection leaves the previous one in place.
	if got, _ := r.ActiveID(); got != f.suburbB.ID {
		t.Errorf("active after failed selections = %d, want %d", got, f.suburbB.ID)
	}
}

func TestRegistryReconcileActive(t *testing.T) {
	f := newRegistryFixture(t)
	r := NewRegistry(f.layers, f.areas)
	ctx := context.Background()
	if err := r.Load(ctx, f.suburb.ID); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Loading with no prior selection picks the lowest-ID editable layer.
	if got, ok := r.ActiveID(); !ok || got != f.suburbA.ID {
		t.Fatalf("active after load = %d (ok=%v), want %d", got, ok, f.suburbA.ID)
	}

	// A surviving selection is untouched by a reload.
	if err := r.SelectActive(f.suburbB.ID); err != nil {
		t.Fatalf("SelectActive: %v", err)
	}
	if err := r.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got, _ := r.ActiveID(); got != f.suburbB.ID {
		t.Errorf("active after reload = %d, want untouched %d", got, f.suburbB.ID)
	}

	// A stale selection moves to the lowest-ID survivor.
	if err := f.layers.Delete(ctx, f.suburbB.ID); err != nil {
		t.Fatalf("delete layer: %v", err)
	}
	if err := r.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got, _ := r.ActiveID(); got != f.suburbA.ID {
		t.Errorf("active after deleting selection = %d, want %d", got, f.suburbA.ID)
	}

	// An empty editable set clears the selection.
	if err := f.layers.Delete(ctx, f.suburbA.ID); err != nil {
		t.Fatalf("delete layer: %v", err)
	}
	if err := r.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if _, ok := r.ActiveID(); ok {
		t.Error("active should clear when no editable layers remain")
	}
}

func TestRegistryVisibilityIncludesInherited(t *testing.T) {
	f := newRegistryFixture(t)
	r := NewRegistry(f.layers, f.areas)
	if err := r.Load(context.Background(), f.suburb.ID); err != nil {
		t.Fatalf("Load: %v", err)
	}

	vis := r.Visibility()
	if len(vis) != 3 {
		t.Fatalf("visibility entries = %d, want 3", len(vis))
	}
	if !vis[f.suburbA.ID] {
		t.Error("visible own layer reported hidden")
	}
	if vis[f.suburbB.ID] {
		t.Error("hidden own layer reported visible")
	}
	if !vis[f.regionBase.ID] {
		t.Error("visible inherited layer reported hidden")
	}
}

func TestRegistryResetClearsState(t *testing.T) {
	f := newRegistryFixture(t)
	r := NewRegistry(f.layers, f.areas)
	if err := r.Load(context.Background(), f.suburb.ID); err != nil {
		t.Fatalf("Load: %v", err)
	}

	r.Reset()
	if r.MapAreaID() != 0 || len(r.All()) != 0 {
		t.Error("reset left layer state behind")
	}
	if _, ok := r.ActiveID(); ok {
		t.Error("reset left an active selection behind")
	}
	if err := r.Reload(context.Background()); err == nil {
		t.Error("reload after reset should fail")
	}
}
