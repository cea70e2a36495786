package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mapnest/mapnest/internal/annotation"
	"github.com/mapnest/mapnest/internal/boundary"
	"github.com/mapnest/mapnest/internal/geo"
	"github.com/mapnest/mapnest/internal/layer"
	"github.com/mapnest/mapnest/internal/maparea"
	"github.com/mapnest/mapnest/internal/tracing"
)

// Result describes one finished export. Geohash locates the boundary's
// center at coarse precision for indexing and CDN cache keys.
type Result struct {
	MapAreaID    int64     `json:"map_area_id"`
	ImageURL     string    `json:"image_url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Geohash      string    `json:"geohash"`
	RenderedAt   time.Time `json:"rendered_at"`
}

// Service renders map areas and publishes the artifacts. When Store is nil
// the artifacts are written under Dir instead.
type Service struct {
	areas       maparea.Repository
	boundaries  boundary.Repository
	layers      layer.Repository
	annotations annotation.Repository

	renderer *Renderer
	store    ObjectStore
	dir      string
	logger   *slog.Logger
	now      func() time.Time
}

// ServiceConfig wires a Service's collaborators.
type ServiceConfig struct {
	Areas       maparea.Repository
	Boundaries  boundary.Repository
	Layers      layer.Repository
	Annotations annotation.Repository
	Renderer    *Renderer
	Store       ObjectStore
	Dir         string
	Logger      *slog.Logger
}

// NewService creates an export service.
func NewService(cfg ServiceConfig) (*Service, error) {
	renderer := cfg.Renderer
	if renderer == nil {
		var err error
		renderer, err = NewRenderer(Options{})
		if err != nil {
			return nil, err
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "exports"
	}
	return &Service{
		areas:       cfg.Areas,
		boundaries:  cfg.Boundaries,
		layers:      cfg.Layers,
		annotations: cfg.Annotations,
		renderer:    renderer,
		store:       cfg.Store,
		dir:         dir,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Export renders the map area and publishes the image plus a thumbnail.
func (s *Service) Export(ctx context.Context, mapAreaID int64) (result *Result, err error) {
	ctx, end := tracing.StartSpan(ctx, "export map_area")
	defer func() { end(err) }()
	tracing.SetAttributes(ctx, attribute.Int64("mapnest.map_area_id", mapAreaID))

	doc, err := s.buildDocument(ctx, mapAreaID)
	if err != nil {
		return nil, err
	}

	png, err := s.renderer.Render(*doc)
	if err != nil {
		return nil, err
	}
	tracing.AddEvent(ctx, "render complete", attribute.Int("mapnest.png_bytes", len(png)))
	thumb, err := Thumbnail(png, DefaultThumbnailWidth)
	if err != nil {
		// A missing thumbnail should not sink the export.
		s.logger.WarnContext(ctx, "thumbnail generation failed",
			"map_area_id", mapAreaID,
			"error", err)
		thumb = nil
	}

	bbox := doc.Boundary.BoundingBox()
	at := s.now()
	hash := geo.Encode((bbox.MinLat+bbox.MaxLat)/2, (bbox.MinLng+bbox.MaxLng)/2, geo.DefaultPrecision)
	cell := geo.Truncate(hash, geo.CellPrecision)
	result = &Result{
		MapAreaID:  mapAreaID,
		Geohash:    hash,
		RenderedAt: at,
	}
	if s.store != nil {
		result.ImageURL, err = s.store.Put(ctx, ObjectKey(cell, mapAreaID, "full", at), "image/png", png)
		if err != nil {
			return nil, err
		}
		if thumb != nil {
			result.ThumbnailURL, err = s.store.Put(ctx, ObjectKey(cell, mapAreaID, "thumb", at), "image/png", thumb)
			if err != nil {
				return nil, err
			}
		}
	} else {
		result.ImageURL, err = s.writeFile(mapAreaID, "full", at, png)
		if err != nil {
			return nil, err
		}
		if thumb != nil {
			result.ThumbnailURL, err = s.writeFile(mapAreaID, "thumb", at, thumb)
			if err != nil {
				return nil, err
			}
		}
	}

	s.logger.InfoContext(ctx, "map area exported",
		"map_area_id", mapAreaID,
		"image", result.ImageURL)
	return result, nil
}

// buildDocument assembles the boundary and the visible annotation layers in
// stacking order. Inherited layers render below the area's own layers, and
// hidden layers contribute nothing.
func (s *Service) buildDocument(ctx context.Context, mapAreaID int64) (*Document, error) {
	area, err := s.areas.GetByID(ctx, mapAreaID)
	if err != nil {
		return nil, err
	}
	b, err := s.boundaries.GetByMapArea(ctx, mapAreaID)
	if err != nil {
		return nil, fmt.Errorf("map area %d has no boundary to render: %w", mapAreaID, err)
	}

	reg := layer.NewRegistry(s.layers, s.areas)
	if err := reg.Load(ctx, mapAreaID); err != nil {
		return nil, err
	}

	stack := make([]*layer.Layer, 0)
	for _, l := range reg.Inherited() {
		if l.Visible {
			stack = append(stack, l)
		}
	}
	for _, l := range reg.Editable() {
		if l.Visible {
			stack = append(stack, l)
		}
	}

	doc := &Document{Name: area.Name, Boundary: b.Ring}
	for _, l := range stack {
		anns, err := s.annotations.ListByLayer(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		if len(anns) == 0 {
			continue
		}
		doc.Layers = append(doc.Layers, LayerDrawing{Layer: l, Annotations: anns})
	}
	return doc, nil
}

func (s *Service) writeFile(mapAreaID int64, variant string, at time.Time, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	name := filepath.Join(s.dir, fmt.Sprintf("%d-%s-%s.png", mapAreaID, at.UTC().Format("20060102T150405"), variant))
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return name, nil
}
