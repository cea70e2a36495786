package api

import (
	"context"
	"testing"

	"github.com/mapnest/mapnest/internal/annotation"
	"github.com/mapnest/mapnest/internal/boundary"
	"github.com/mapnest/mapnest/internal/geom"
	"github.com/mapnest/mapnest/internal/layer"
	"github.com/mapnest/mapnest/internal/maparea"
)

// testEnv bundles the in-memory repositories shared by handler tests.
type testEnv struct {
	areas       *maparea.InMemoryRepository
	boundaries  *boundary.InMemoryRepository
	layers      *layer.InMemoryRepository
	annotations *annotation.InMemoryRepository
}

func newTestEnv() *testEnv {
	layers := layer.NewInMemoryRepository()
	return &testEnv{
		areas:       maparea.NewInMemoryRepository(),
		boundaries:  boundary.NewInMemoryRepository(),
		layers:      layers,
		annotations: annotation.NewInMemoryRepository(layers),
	}
}

func (e *testEnv) addRegion(t *testing.T, name string) *maparea.MapArea {
	t.Helper()
	area := &maparea.MapArea{
		Name: name,
		Kind: maparea.KindRegion,
		DefaultView: maparea.DefaultView{
			CenterLat: -34.92,
			CenterLng: 138.6,
			Zoom:      11,
		},
	}
	if err := e.areas.Create(context.Background(), area); err != nil {
		t.Fatalf("failed to create region %q: %v", name, err)
	}
	return area
}

func (e *testEnv) addSuburb(t *testing.T, name string, parentID int64) *maparea.MapArea {
	t.Helper()
	area := &maparea.MapArea{
		ParentID: &parentID,
		Name:     name,
		Kind:     maparea.KindSuburb,
		DefaultView: maparea.DefaultView{
			CenterLat: -34.9,
			CenterLng: 138.58,
			Zoom:      14,
		},
	}
	if err := e.areas.Create(context.Background(), area); err != nil {
		t.Fatalf("failed to create suburb %q: %v", name, err)
	}
	return area
}

func (e *testEnv) addBoundary(t *testing.T, mapAreaID int64, ring geom.Ring) *boundary.Boundary {
	t.Helper()
	b := &boundary.Boundary{MapAreaID: mapAreaID, Ring: ring}
	if err := e.boundaries.Create(context.Background(), b); err != nil {
		t.Fatalf("failed to create boundary for area %d: %v", mapAreaID, err)
	}
	return b
}

func (e *testEnv) addLayer(t *testing.T, mapAreaID int64, name string, zIndex int) *layer.Layer {
	t.Helper()
	l := &layer.Layer{
		MapAreaID: mapAreaID,
		Name:      name,
		Visible:   true,
		ZIndex:    zIndex,
		Editable:  true,
	}
	if err := e.layers.Create(context.Background(), l); err != nil {
		t.Fatalf("failed to create layer %q: %v", name, err)
	}
	return l
}

func (e *testEnv) addMarker(t *testing.T, layerID int64, content string) *annotation.Annotation {
	t.Helper()
	a := &annotation.Annotation{
		LayerID: layerID,
		Kind:    annotation.KindMarker,
		Points:  []geom.Point{{Lat: -34.91, Lng: 138.59}},
		Content: content,
	}
	if err := e.annotations.Create(context.Background(), a); err != nil {
		t.Fatalf("failed to create annotation: %v", err)
	}
	return a
}

// rectRing builds an axis-aligned rectangle between the two corners.
func rectRing(minLat, minLng, maxLat, maxLng float64) geom.Ring {
	return geom.Ring{
		{Lat: minLat, Lng: minLng},
		{Lat: minLat, Lng: maxLng},
		{Lat: maxLat, Lng: maxLng},
		{Lat: maxLat, Lng: minLng},
	}
}
