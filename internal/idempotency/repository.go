package idempotency

import (
	"sync"
	"time"
)

// InMemoryRepository keeps replay records in a map. A single API replica
// serves all export traffic today, so process-local storage is enough; the
// idempotency_keys table exists for when that stops being true.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string]*Record),
	}
}

// Get returns a copy of the record for key, or ErrKeyNotFound.
func (r *InMemoryRepository) Get(key string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return record.clone(), nil
}

// Store saves a new record, stamping CreatedAt when unset. Returns
// ErrKeyExists for duplicates.
func (r *InMemoryRepository) Store(record *Record) error {
	if err := ValidateKey(record.Key); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.Key]; exists {
		return ErrKeyExists
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	// Stored copy is detached from the caller's record.
	r.records[record.Key] = record.clone()
	return nil
}

// DeleteOlderThan removes records created before now minus age.
func (r *InMemoryRepository) DeleteOlderThan(age time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-age)
	deleted := int64(0)
	for key, record := range r.records {
		if record.CreatedAt.Before(cutoff) {
			delete(r.records, key)
			deleted++
		}
	}
	return deleted, nil
}

func (rec *Record) clone() *Record {
	if rec == nil {
		return nil
	}
	copied := *rec
	if rec.MapAreaID != nil {
		id := *rec.MapAreaID
		copied.MapAreaID = &id
	}
	return &copied
}
