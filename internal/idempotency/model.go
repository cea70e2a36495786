// Package idempotency stores responses of completed export requests so
// client retries replay the original result instead of rendering again.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Record status values. Only StatusCompleted is written by the current code;
// StatusProcessing exists for an in-flight marker and is part of the
// idempotency_keys CHECK constraint, so removing it means a migration.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

var (
	// ErrKeyNotFound is returned when no record exists for a key.
	ErrKeyNotFound = errors.New("idempotency key not found")

	// ErrKeyExists is returned when storing a duplicate key.
	ErrKeyExists = errors.New("idempotency key already exists")

	// ErrInvalidKey is returned for an empty key.
	ErrInvalidKey = errors.New("invalid idempotency key")

	// ErrKeyTooLong is returned when the key exceeds MaxKeyLength.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// MaxKeyLength matches the VARCHAR(64) column in idempotency_keys.
const MaxKeyLength = 64

// Record is one replayable response, keyed by the client's Idempotency-Key.
type Record struct {
	Key                string    `json:"key"`
	Method             string    `json:"method"`
	Route              string    `json:"route"`
	CreatedAt          time.Time `json:"created_at"`
	MapAreaID          *int64    `json:"map_area_id,omitempty"`
	ResponseHash       string    `json:"response_hash"`
	Status             string    `json:"status"`
	ResponseBody       string    `json:"response_body"`
	ResponseStatusCode int       `json:"response_status_code"`
}

// ValidateKey rejects empty keys and keys longer than MaxKeyLength.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// ComputeResponseHash hashes a response body. Stored alongside the body so a
// replay can be checked for corruption before it goes out.
func ComputeResponseHash(responseBody string) string {
	hash := sha256.Sum256([]byte(responseBody))
	return hex.EncodeToString(hash[:])
}

// Repository persists replay records.
type Repository interface {
	// Get returns the record for key, or ErrKeyNotFound.
	Get(key string) (*Record, error)

	// Store saves a new record. Returns ErrKeyExists for duplicates.
	Store(record *Record) error

	// DeleteOlderThan removes records older than the given age and reports
	// how many were removed.
	DeleteOlderThan(age time.Duration) (int64, error)
}
