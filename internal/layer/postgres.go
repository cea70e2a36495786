package layer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// PostgresRepository implements Repository using PostgreSQL. Style maps are
// stored as JSONB.
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

// Create stores a new layer and assigns its ID.
func (r *PostgresRepository) Create(ctx context.Context, l *Layer) error {
	if err := l.Validate(); err != nil {
		return err
	}

	style, err := marshalStyle(l.Style)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO layers (map_area_id, name, visible, z_index, is_editable, style)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		l.MapAreaID, l.Name, l.Visible, l.ZIndex, l.Editable, style,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to insert layer",
			slog.String("error", err.Error()),
			slog.Int64("map_area_id", l.MapAreaID),
			slog.String("name", l.Name))
		return fmt.Errorf("failed to insert layer: %w", err)
	}
	return nil
}

// GetByID retrieves a layer by its ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Layer, error) {
	query := `
		SELECT id, map_area_id, name, visible, z_index, is_editable, style,
		       created_at, updated_at
		FROM layers WHERE id = $1`

	l, err := scanLayer(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get layer %d: %w", id, err)
	}
	return l, nil
}

// ListByMapArea retrieves a map area's own layers ordered by (z_index, id).
func (r *PostgresRepository) ListByMapArea(ctx context.Context, mapAreaID int64) ([]*Layer, error) {
	query := `
		SELECT id, map_area_id, name, visible, z_index, is_editable, style,
		       created_at, updated_at
		FROM layers WHERE map_area_id = $1
		ORDER BY z_index, id`

	rows, err := r.db.QueryContext(ctx, query, mapAreaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list layers for map area %d: %w", mapAreaID, err)
	}
	defer rows.Close()

	var layers []*Layer
	for rows.Next() {
		l, err := scanLayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan layer row: %w", err)
		}
		layers = append(layers, l)
	}
	return layers, rows.Err()
}

// Update modifies a layer's mutable fields.
func (r *PostgresRepository) Update(ctx context.Context, l *Layer) error {
	if err := l.Validate(); err != nil {
		return err
	}

	style, err := marshalStyle(l.Style)
	if err != nil {
		return err
	}

	query := `
		UPDATE layers
		SET name = $2, visible = $3, z_index = $4, style = $5, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, l.ID, l.Name, l.Visible, l.ZIndex, style)
	if err != nil {
		return fmt.Errorf("failed to update layer %d: %w", l.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrLayerNotFound
	}
	return nil
}

// Reorder applies a batch of z-index updates in one transaction, so a partial
// reorder never becomes visible.
func (r *PostgresRepository) Reorder(ctx context.Context, updates []ZIndexUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reorder transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Warn("failed to rollback reorder transaction",
				slog.String("error", err.Error()))
		}
	}()

	for _, u := range updates {
		if _, err := tx.ExecContext(ctx,
			`UPDATE layers SET z_index = $2, updated_at = NOW() WHERE id = $1`,
			u.ID, u.ZIndex); err != nil {
			return fmt.Errorf("failed to reorder layer %d: %w", u.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reorder transaction: %w", err)
	}
	return nil
}

// Delete removes a layer. Foreign keys cascade its annotations.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM layers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete layer %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrLayerNotFound
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLayer(row rowScanner) (*Layer, error) {
	var l Layer
	var style []byte
	err := row.Scan(&l.ID, &l.MapAreaID, &l.Name, &l.Visible, &l.ZIndex,
		&l.Editable, &style, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(style) > 0 {
		if err := json.Unmarshal(style, &l.Style); err != nil {
			return nil, fmt.Errorf("failed to unmarshal layer style: %w", err)
		}
	}
	return &l, nil
}

func marshalStyle(style map[string]any) ([]byte, error) {
	if style == nil {
		style = map[string]any{}
	}
	data, err := json.Marshal(style)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal layer style: %w", err)
	}
	return data, nil
}
