package maparea

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository defines the interface for map area data operations.
type Repository interface {
	// Create stores a new map area after validating hierarchy invariants
	// and assigns its ID.
	Create(ctx context.Context, area *MapArea) error

	// GetByID retrieves a map area. Returns ErrMapAreaNotFound if absent.
	GetByID(ctx context.Context, id int64) (*MapArea, error)

	// ListChildren retrieves the direct children of a map area, ordered by ID.
	ListChildren(ctx context.Context, parentID int64) ([]*MapArea, error)

	// Update modifies an existing map area's name and default view.
	Update(ctx context.Context, area *MapArea) error

	// Delete removes a map area. The persistent store cascades the area's
	// boundary, layers, and annotations. Returns ErrMapAreaNotFound if absent.
	Delete(ctx context.Context, id int64) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex; used for tests and the engine's offline mode.
type InMemoryRepository struct {
	mu     sync.RWMutex
	areas  map[int64]*MapArea
	nextID int64
}

// NewInMemoryRepository creates a new in-memory map area repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		areas:  make(map[int64]*MapArea),
		nextID: 1,
	}
}

// Create stores a new map area and assigns its ID.
func (r *InMemoryRepository) Create(ctx context.Context, area *MapArea) error {
	if err := area.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if area.ParentID != nil {
		if _, ok := r.areas[*area.ParentID]; !ok {
			return ErrMapAreaNotFound
		}
	}

	area.ID = r.nextID
	r.nextID++
	now := time.Now().UTC()
	area.CreatedAt = now
	area.UpdatedAt = now

	stored := *area
	r.areas[stored.ID] = &stored
	return nil
}

// GetByID retrieves a map area by its ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id int64) (*MapArea, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	area, ok := r.areas[id]
	if !ok {
		return nil, ErrMapAreaNotFound
	}
	areaCopy := *area
	return &areaCopy, nil
}

// ListChildren retrieves the direct children of a map area, ordered by ID.
func (r *InMemoryRepository) ListChildren(ctx context.Context, parentID int64) ([]*MapArea, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var children []*MapArea
	for _, area := range r.areas {
		if area.ParentID != nil && *area.ParentID == parentID {
			areaCopy := *area
			children = append(children, &areaCopy)
		}
	}
	sortByID(children)
	return children, nil
}

// Update modifies an existing map area.
func (r *InMemoryRepository) Update(ctx context.Context, area *MapArea) error {
	if err := area.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.areas[area.ID]; !ok {
		return ErrMapAreaNotFound
	}
	stored := *area
	r.areas[stored.ID] = &stored
	return nil
}

// Delete removes a map area and, recursively, its descendants.
func (r *InMemoryRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.areas[id]; !ok {
		return ErrMapAreaNotFound
	}
	r.deleteTreeLocked(id)
	return nil
}

// deleteTreeLocked removes an area and its descendants. Caller holds the lock.
func (r *InMemoryRepository) deleteTreeLocked(id int64) {
	delete(r.areas, id)
	for childID, area := range r.areas {
		if area.ParentID != nil && *area.ParentID == id {
			r.deleteTreeLocked(childID)
		}
	}
}

// sortByID orders map areas ascending by ID for stable listings.
func sortByID(areas []*MapArea) {
	sort.Slice(areas, func(i, j int) bool { return areas[i].ID < areas[j].ID })
}
