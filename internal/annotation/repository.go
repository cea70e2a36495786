package annotation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mapnest/mapnest/internal/geom"
	"github.com/mapnest/mapnest/internal/layer"
)

// Repository defines the interface for annotation data operations. Creation
// re-validates that the target layer exists and is editable, mirroring the
// engine's local check: a layer deleted or frozen between the draw and the
// commit must still be rejected here.
type Repository interface {
	// Create stores a new annotation and assigns its ID. Returns
	// layer.ErrLayerNotFound for an unknown layer and
	// layer.ErrLayerNotEditable for a read-only one.
	Create(ctx context.Context, a *Annotation) error

	// GetByID retrieves an annotation. Returns ErrAnnotationNotFound if absent.
	GetByID(ctx context.Context, id int64) (*Annotation, error)

	// ListByLayer retrieves a layer's annotations in creation order.
	ListByLayer(ctx context.Context, layerID int64) ([]*Annotation, error)

	// ListByLayers retrieves annotations across multiple layers in
	// creation order.
	ListByLayers(ctx context.Context, layerIDs []int64) ([]*Annotation, error)

	// Update replaces an annotation's geometry, style, and content.
	Update(ctx context.Context, a *Annotation) error

	// Delete removes an annotation. Returns ErrAnnotationNotFound if absent.
	Delete(ctx context.Context, id int64) error

	// DeleteByLayer removes every annotation on a layer and returns the count.
	DeleteByLayer(ctx context.Context, layerID int64) (int64, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu          sync.RWMutex
	annotations map[int64]*Annotation
	layers      layer.Repository
	nextID      int64
}

// NewInMemoryRepository creates a new in-memory annotation repository.
// The layer repository backs the create-time editability re-validation.
func NewInMemoryRepository(layers layer.Repository) *InMemoryRepository {
	return &InMemoryRepository{
		annotations: make(map[int64]*Annotation),
		layers:      layers,
		nextID:      1,
	}
}

// Create stores a new annotation after re-validating its layer.
func (r *InMemoryRepository) Create(ctx context.Context, a *Annotation) error {
	if err := a.Validate(); err != nil {
		return err
	}

	owner, err := r.layers.GetByID(ctx, a.LayerID)
	if err != nil {
		return err
	}
	if !owner.Editable {
		return layer.ErrLayerNotEditable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a.ID = r.nextID
	r.nextID++
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	r.annotations[a.ID] = copyAnnotation(a)
	return nil
}

// GetByID retrieves an annotation by its ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id int64) (*Annotation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.annotations[id]
	if !ok {
		return nil, ErrAnnotationNotFound
	}
	return copyAnnotation(a), nil
}

// ListByLayer retrieves a layer's annotations in creation order.
func (r *InMemoryRepository) ListByLayer(ctx context.Context, layerID int64) ([]*Annotation, error) {
	return r.ListByLayers(ctx, []int64{layerID})
}

// ListByLayers retrieves annotations across multiple layers in creation order.
func (r *InMemoryRepository) ListByLayers(ctx context.Context, layerIDs []int64) ([]*Annotation, error) {
	wanted := make(map[int64]struct{}, len(layerIDs))
	for _, id := range layerIDs {
		wanted[id] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Annotation
	for _, a := range r.annotations {
		if _, ok := wanted[a.LayerID]; ok {
			result = append(result, copyAnnotation(a))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Update replaces an annotation's geometry, style, and content.
func (r *InMemoryRepository) Update(ctx context.Context, a *Annotation) error {
	if err := a.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.annotations[a.ID]
	if !ok {
		return ErrAnnotationNotFound
	}
	a.LayerID = existing.LayerID
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	r.annotations[a.ID] = copyAnnotation(a)
	return nil
}

// Delete removes an annotation.
func (r *InMemoryRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.annotations[id]; !ok {
		return ErrAnnotationNotFound
	}
	delete(r.annotations, id)
	return nil
}

// DeleteByLayer removes every annotation on a layer.
func (r *InMemoryRepository) DeleteByLayer(ctx context.Context, layerID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, a := range r.annotations {
		if a.LayerID == layerID {
			delete(r.annotations, id)
			n++
		}
	}
	return n, nil
}

// copyAnnotation deep-copies an annotation including points and style.
func copyAnnotation(a *Annotation) *Annotation {
	c := *a
	c.Points = append([]geom.Point(nil), a.Points...)
	if a.Style != nil {
		c.Style = make(map[string]any, len(a.Style))
		for k, v := range a.Style {
			c.Style[k] = v
		}
	}
	return &c
}
