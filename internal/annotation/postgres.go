package annotation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/mapnest/mapnest/internal/geom"
	"github.com/mapnest/mapnest/internal/layer"
)

// PostgresRepository implements Repository using PostgreSQL. Points are stored
// as JSONB arrays of [lat, lng] pairs; style as a JSONB object.
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

// Create stores a new annotation after re-validating its layer inside the
// same transaction, so a concurrent layer delete or freeze cannot slip
// between the check and the insert.
func (r *PostgresRepository) Create(ctx context.Context, a *Annotation) error {
	if err := a.Validate(); err != nil {
		return err
	}

	points, err := marshalPoints(a.Points)
	if err != nil {
		return err
	}
	style, err := marshalAnnotationStyle(a.Style)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin annotation transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Warn("failed to rollback annotation transaction",
				slog.String("error", err.Error()))
		}
	}()

	var editable bool
	err = tx.QueryRowContext(ctx,
		`SELECT is_editable FROM layers WHERE id = $1 FOR SHARE`, a.LayerID,
	).Scan(&editable)
	if errors.Is(err, sql.ErrNoRows) {
		return layer.ErrLayerNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check layer %d: %w", a.LayerID, err)
	}
	if !editable {
		return layer.ErrLayerNotEditable
	}

	query := `
		INSERT INTO annotations (layer_id, kind, points, style, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowContext(ctx, query,
		a.LayerID, string(a.Kind), points, style, a.Content,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to insert annotation",
			slog.String("error", err.Error()),
			slog.Int64("layer_id", a.LayerID),
			slog.String("kind", string(a.Kind)))
		return fmt.Errorf("failed to insert annotation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit annotation transaction: %w", err)
	}
	return nil
}

// GetByID retrieves an annotation by its ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Annotation, error) {
	query := `
		SELECT id, layer_id, kind, points, style, content, created_at, updated_at
		FROM annotations WHERE id = $1`

	a, err := scanAnnotation(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnnotationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get annotation %d: %w", id, err)
	}
	return a, nil
}

// ListByLayer retrieves a layer's annotations in creation order.
func (r *PostgresRepository) ListByLayer(ctx context.Context, layerID int64) ([]*Annotation, error) {
	return r.ListByLayers(ctx, []int64{layerID})
}

// ListByLayers retrieves annotations across multiple layers in creation order.
func (r *PostgresRepository) ListByLayers(ctx context.Context, layerIDs []int64) ([]*Annotation, error) {
	if len(layerIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, layer_id, kind, points, style, content, created_at, updated_at
		FROM annotations WHERE layer_id = ANY($1)
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(layerIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}
	defer rows.Close()

	var annotations []*Annotation
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotation row: %w", err)
		}
		annotations = append(annotations, a)
	}
	return annotations, rows.Err()
}

// Update replaces an annotation's geometry, style, and content.
func (r *PostgresRepository) Update(ctx context.Context, a *Annotation) error {
	if err := a.Validate(); err != nil {
		return err
	}

	points, err := marshalPoints(a.Points)
	if err != nil {
		return err
	}
	style, err := marshalAnnotationStyle(a.Style)
	if err != nil {
		return err
	}

	query := `
		UPDATE annotations
		SET points = $2, style = $3, content = $4, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, a.ID, points, style, a.Content)
	if err != nil {
		return fmt.Errorf("failed to update annotation %d: %w", a.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrAnnotationNotFound
	}
	return nil
}

// Delete removes an annotation.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM annotations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete annotation %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrAnnotationNotFound
	}
	return nil
}

// DeleteByLayer removes every annotation on a layer.
func (r *PostgresRepository) DeleteByLayer(ctx context.Context, layerID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM annotations WHERE layer_id = $1`, layerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete annotations for layer %d: %w", layerID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnnotation(row rowScanner) (*Annotation, error) {
	var a Annotation
	var kind string
	var points, style []byte
	err := row.Scan(&a.ID, &a.LayerID, &kind, &points, &style, &a.Content,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Kind = Kind(kind)

	var pairs [][2]float64
	if err := json.Unmarshal(points, &pairs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal annotation points: %w", err)
	}
	a.Points = make([]geom.Point, len(pairs))
	for i, pair := range pairs {
		a.Points[i] = geom.Point{Lat: pair[0], Lng: pair[1]}
	}

	if len(style) > 0 {
		if err := json.Unmarshal(style, &a.Style); err != nil {
			return nil, fmt.Errorf("failed to unmarshal annotation style: %w", err)
		}
	}
	return &a, nil
}

func marshalPoints(points []geom.Point) ([]byte, error) {
	pairs := make([][2]float64, len(points))
	for i, p := range points {
		pairs[i] = [2]float64{p.Lat, p.Lng}
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal annotation points: %w", err)
	}
	return data, nil
}

func marshalAnnotationStyle(style map[string]any) ([]byte, error) {
	if style == nil {
		style = map[string]any{}
	}
	data, err := json.Marshal(style)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal annotation style: %w", err)
	}
	return data, nil
}
