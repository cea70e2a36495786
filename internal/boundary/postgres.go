package boundary

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/mapnest/mapnest/internal/geom"
)

// PostgresRepository implements Repository using PostgreSQL. Rings are stored
// as JSONB arrays of [lat, lng] pairs, first vertex not duplicated at the end.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// Create stores a new boundary for a map area and assigns its ID.
func (r *PostgresRepository) Create(ctx context.Context, b *Boundary) error {
	if err := b.Validate(); err != nil {
		return err
	}

	ring, err := marshalRing(b.Ring)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO boundaries (map_area_id, ring)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query, b.MapAreaID, ring).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrBoundaryExists
		}
		r.logger.Error("failed to insert boundary",
			slog.String("error", err.Error()),
			slog.Int64("map_area_id", b.MapAreaID))
		return fmt.Errorf("failed to insert boundary: %w", err)
	}
	return nil
}

// GetByMapArea retrieves the boundary owned by a map area.
func (r *PostgresRepository) GetByMapArea(ctx context.Context, mapAreaID int64) (*Boundary, error) {
	query := `
		SELECT id, map_area_id, ring, created_at, updated_at
		FROM boundaries WHERE map_area_id = $1`

	var b Boundary
	var raw []byte
	err := r.db.QueryRowContext(ctx, query, mapAreaID).
		Scan(&b.ID, &b.MapAreaID, &raw, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBoundaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get boundary for map area %d: %w", mapAreaID, err)
	}
	if b.Ring, err = unmarshalRing(raw); err != nil {
		return nil, err
	}
	return &b, nil
}

// Update replaces a boundary's ring wholesale.
func (r *PostgresRepository) Update(ctx context.Context, b *Boundary) error {
	if err := b.Validate(); err != nil {
		return err
	}

	ring, err := marshalRing(b.Ring)
	if err != nil {
		return err
	}

	query := `UPDATE boundaries SET ring = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, b.ID, ring)
	if err != nil {
		return fmt.Errorf("failed to update boundary %d: %w", b.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrBoundaryNotFound
	}
	return nil
}

// Delete removes a boundary.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM boundaries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete boundary %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrBoundaryNotFound
	}
	return nil
}

// marshalRing encodes a ring as a JSON array of [lat, lng] pairs.
func marshalRing(ring geom.Ring) ([]byte, error) {
	pairs := make([][2]float64, len(ring))
	for i, p := range ring {
		pairs[i] = [2]float64{p.Lat, p.Lng}
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ring: %w", err)
	}
	return data, nil
}

// unmarshalRing decodes a JSON array of [lat, lng] pairs into a ring.
func unmarshalRing(raw []byte) (geom.Ring, error) {
	var pairs [][2]float64
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ring: %w", err)
	}
	ring := make(geom.Ring, len(pairs))
	for i, pair := range pairs {
		ring[i] = geom.Point{Lat: pair[0], Lng: pair[1]}
	}
	return ring, nil
}

// isUniqueViolation reports whether err is a postgres unique constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
