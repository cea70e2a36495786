package layer

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ZIndexUpdate assigns a new stacking position to one layer.
type ZIndexUpdate struct {
	ID     int64 `json:"id"`
	ZIndex int   `json:"z_index"`
}

// Repository defines the interface for layer data operations. Only a map
// area's own layers are stored; inherited copies are derived by the Registry.
type Repository interface {
	// Create stores a new layer and assigns its ID.
	Create(ctx context.Context, l *Layer) error

	// GetByID retrieves a layer. Returns ErrLayerNotFound if absent.
	GetByID(ctx context.Context, id int64) (*Layer, error)

	// ListByMapArea retrieves a map area's own layers ordered by
	// (z_index, id).
	ListByMapArea(ctx context.Context, mapAreaID int64) ([]*Layer, error)

	// Update modifies a layer's name, visibility, stacking index, and style.
	Update(ctx context.Context, l *Layer) error

	// Reorder applies a batch of z-index updates.
	Reorder(ctx context.Context, updates []ZIndexUpdate) error

	// Delete removes a layer. The persistent store cascades its annotations.
	Delete(ctx context.Context, id int64) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu     sync.RWMutex
	layers map[int64]*Layer
	nextID int64
}

// NewInMemoryRepository creates a new in-memory layer repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		layers: make(map[int64]*Layer),
		nextID: 1,
	}
}

// Create stores a new layer and assigns its ID.
func (r *InMemoryRepository) Create(ctx context.Context, l *Layer) error {
	if err := l.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	l.ID = r.nextID
	r.nextID++
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	r.layers[l.ID] = copyLayer(l)
	return nil
}

// GetByID retrieves a layer by its ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id int64) (*Layer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.layers[id]
	if !ok {
		return nil, ErrLayerNotFound
	}
	return copyLayer(l), nil
}

// ListByMapArea retrieves a map area's own layers ordered by (z_index, id).
func (r *InMemoryRepository) ListByMapArea(ctx context.Context, mapAreaID int64) ([]*Layer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var layers []*Layer
	for _, l := range r.layers {
		if l.MapAreaID == mapAreaID {
			layers = append(layers, copyLayer(l))
		}
	}
	sortLayers(layers)
	return layers, nil
}

// Update modifies a layer's mutable fields.
func (r *InMemoryRepository) Update(ctx context.Context, l *Layer) error {
	if err := l.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.layers[l.ID]
	if !ok {
		return ErrLayerNotFound
	}
	l.MapAreaID = existing.MapAreaID
	l.CreatedAt = existing.CreatedAt
	l.UpdatedAt = time.Now().UTC()
	r.layers[l.ID] = copyLayer(l)
	return nil
}

// Reorder applies a batch of z-index updates. Unknown IDs are skipped.
func (r *InMemoryRepository) Reorder(ctx context.Context, updates []ZIndexUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range updates {
		if l, ok := r.layers[u.ID]; ok {
			l.ZIndex = u.ZIndex
			l.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

// Delete removes a layer.
func (r *InMemoryRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.layers[id]; !ok {
		return ErrLayerNotFound
	}
	delete(r.layers, id)
	return nil
}

// copyLayer deep-copies a layer including its style map.
func copyLayer(l *Layer) *Layer {
	c := *l
	if l.ParentLayerID != nil {
		parent := *l.ParentLayerID
		c.ParentLayerID = &parent
	}
	if l.Style != nil {
		c.Style = make(map[string]any, len(l.Style))
		for k, v := range l.Style {
			c.Style[k] = v
		}
	}
	return &c
}

// sortLayers orders layers by (z_index, id) for stable stacking.
func sortLayers(layers []*Layer) {
	sort.Slice(layers, func(i, j int) bool {
		if layers[i].ZIndex != layers[j].ZIndex {
			return layers[i].ZIndex < layers[j].ZIndex
		}
		return layers[i].ID < layers[j].ID
	})
}
