package maparea

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mapnest/mapnest/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL.
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

// Create stores a new map area and assigns its ID.
func (r *PostgresRepository) Create(ctx context.Context, area *MapArea) (err error) {
	if err := area.Validate(); err != nil {
		return err
	}

	ctx, end := tracing.StartDBSpan(ctx, "map_areas", tracing.DBOperationInsert)
	defer func() { end(err) }()

	query := `
		INSERT INTO map_areas (parent_id, name, kind, center_lat, center_lng, zoom, bearing)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		area.ParentID, area.Name, string(area.Kind),
		area.DefaultView.CenterLat, area.DefaultView.CenterLng,
		area.DefaultView.Zoom, area.DefaultView.Bearing,
	).Scan(&area.ID, &area.CreatedAt, &area.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to insert map area",
			slog.String("error", err.Error()),
			slog.String("name", area.Name))
		return fmt.Errorf("failed to insert map area: %w", err)
	}
	return nil
}

// GetByID retrieves a map area by its ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (area *MapArea, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "map_areas", tracing.DBOperationQuery)
	defer func() { end(err) }()

	query := `
		SELECT id, parent_id, name, kind, center_lat, center_lng, zoom, bearing,
		       created_at, updated_at
		FROM map_areas WHERE id = $1`

	area, err = scanMapArea(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMapAreaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get map area %d: %w", id, err)
	}
	return area, nil
}

// ListChildren retrieves the direct children of a map area, ordered by ID.
func (r *PostgresRepository) ListChildren(ctx context.Context, parentID int64) (children []*MapArea, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "map_areas", tracing.DBOperationQuery)
	defer func() { end(err) }()

	query := `
		SELECT id, parent_id, name, kind, center_lat, center_lng, zoom, bearing,
		       created_at, updated_at
		FROM map_areas WHERE parent_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children of map area %d: %w", parentID, err)
	}
	defer rows.Close()

	for rows.Next() {
		area, err := scanMapArea(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan map area row: %w", err)
		}
		children = append(children, area)
	}
	return children, rows.Err()
}

// Update modifies an existing map area's name and default view.
func (r *PostgresRepository) Update(ctx context.Context, area *MapArea) (err error) {
	if err := area.Validate(); err != nil {
		return err
	}

	ctx, end := tracing.StartDBSpan(ctx, "map_areas", tracing.DBOperationUpdate)
	defer func() { end(err) }()

	query := `
		UPDATE map_areas
		SET name = $2, center_lat = $3, center_lng = $4, zoom = $5, bearing = $6,
		    updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, area.ID, area.Name,
		area.DefaultView.CenterLat, area.DefaultView.CenterLng,
		area.DefaultView.Zoom, area.DefaultView.Bearing)
	if err != nil {
		return fmt.Errorf("failed to update map area %d: %w", area.ID, err)
	}
	return requireRowAffected(result, ErrMapAreaNotFound)
}

// Delete removes a map area. Foreign keys cascade the subtree, boundary,
// layers, and annotations.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) (err error) {
	ctx, end := tracing.StartDBSpan(ctx, "map_areas", tracing.DBOperationDelete)
	defer func() { end(err) }()

	result, err := r.db.ExecContext(ctx, `DELETE FROM map_areas WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete map area %d: %w", id, err)
	}
	return requireRowAffected(result, ErrMapAreaNotFound)
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMapArea(row rowScanner) (*MapArea, error) {
	var area MapArea
	var kind string
	err := row.Scan(&area.ID, &area.ParentID, &area.Name, &kind,
		&area.DefaultView.CenterLat, &area.DefaultView.CenterLng,
		&area.DefaultView.Zoom, &area.DefaultView.Bearing,
		&area.CreatedAt, &area.UpdatedAt)
	if err != nil {
		return nil, err
	}
	area.Kind = Kind(kind)
	return &area, nil
}

func requireRowAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
