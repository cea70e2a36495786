package boundary

import (
	"context"
	"sync"
	"time"

	"github.com/mapnest/mapnest/internal/geom"
)

// Repository defines the interface for boundary data operations.
type Repository interface {
	// Create stores a new boundary for a map area and assigns its ID.
	// Returns ErrBoundaryExists if the map area already has one.
	Create(ctx context.Context, b *Boundary) error

	// GetByMapArea retrieves the boundary owned by a map area.
	// Returns ErrBoundaryNotFound if the area has no boundary yet.
	GetByMapArea(ctx context.Context, mapAreaID int64) (*Boundary, error)

	// Update replaces a boundary's ring wholesale.
	Update(ctx context.Context, b *Boundary) error

	// Delete removes a boundary. Returns ErrBoundaryNotFound if absent.
	Delete(ctx context.Context, id int64) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu         sync.RWMutex
	boundaries map[int64]*Boundary // keyed by boundary ID
	byArea     map[int64]int64     // mapAreaID -> boundary ID
	nextID     int64
}

// NewInMemoryRepository creates a new in-memory boundary repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		boundaries: make(map[int64]*Boundary),
		byArea:     make(map[int64]int64),
		nextID:     1,
	}
}

// Create stores a new boundary and assigns its ID.
func (r *InMemoryRepository) Create(ctx context.Context, b *Boundary) error {
	if err := b.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byArea[b.MapAreaID]; ok {
		return ErrBoundaryExists
	}

	b.ID = r.nextID
	r.nextID++
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	stored := copyBoundary(b)
	r.boundaries[stored.ID] = stored
	r.byArea[stored.MapAreaID] = stored.ID
	return nil
}

// GetByMapArea retrieves the boundary owned by a map area.
func (r *InMemoryRepository) GetByMapArea(ctx context.Context, mapAreaID int64) (*Boundary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byArea[mapAreaID]
	if !ok {
		return nil, ErrBoundaryNotFound
	}
	return copyBoundary(r.boundaries[id]), nil
}

// Update replaces a boundary's ring wholesale.
func (r *InMemoryRepository) Update(ctx context.Context, b *Boundary) error {
	if err := b.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.boundaries[b.ID]
	if !ok {
		return ErrBoundaryNotFound
	}
	b.MapAreaID = existing.MapAreaID
	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = time.Now().UTC()
	r.boundaries[b.ID] = copyBoundary(b)
	return nil
}

// Delete removes a boundary.
func (r *InMemoryRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.boundaries[id]
	if !ok {
		return ErrBoundaryNotFound
	}
	delete(r.byArea, b.MapAreaID)
	delete(r.boundaries, id)
	return nil
}

// copyBoundary deep-copies a boundary so callers cannot mutate stored rings.
func copyBoundary(b *Boundary) *Boundary {
	c := *b
	c.Ring = append(geom.Ring(nil), b.Ring...)
	return &c
}
