package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) ListCanvases(ctx context.Context) ([]Canvas, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, version, revision, state_key, created_at, updated_at
		FROM canvases
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list canvases: %w", err)
	}
	defer rows.Close()

	canvases := make([]Canvas, 0)
	for rows.Next() {
		var c Canvas
		if err := rows.Scan(&c.ID, &c.Title, &c.Version, &c.Revision, &c.StateKey, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan canvas: %w", err)
		}
		canvases = append(canvases, c)
	}
	return canvases, rows.Err()
}

func (s *PostgresStore) GetCanvas(ctx context.Context, canvasID string) (Canvas, error) {
	var c Canvas
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, version, revision, state_key, created_at, updated_at
		FROM canvases
		WHERE id = $1
	`, canvasID).Scan(&c.ID, &c.Title, &c.Version, &c.Revision, &c.StateKey, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Canvas{}, err
	}
	return c, nil
}

func (s *PostgresStore) InsertCanvas(ctx context.Context, c Canvas) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO canvases (id, title, version, revision, state_key)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.Title, c.Version, c.Revision, c.StateKey)
	if err != nil {
		return fmt.Errorf("insert canvas: %w", err)
	}
	return nil
}

func (s *PostgresStore) RenameCanvas(ctx context.Context, canvasID, title string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE canvases SET title=$2, updated_at=NOW() WHERE id=$1
	`, canvasID, title)
	if err != nil {
		return fmt.Errorf("rename canvas: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SwapCanvasState advances a canvas's state pointer if and only if nobody
// else has written since the caller read revision expectedRevision. Returns
// false when the compare-and-swap lost; the caller should re-read and retry.
func (s *PostgresStore) SwapCanvasState(ctx context.Context, canvasID string, expectedRevision int64, version, stateKey, searchText string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE canvases
		SET version=$3, revision=revision+1, state_key=$4, search_text=$5, updated_at=NOW()
		WHERE id=$1 AND revision=$2
	`, canvasID, expectedRevision, version, stateKey, searchText)
	if err != nil {
		return false, fmt.Errorf("swap canvas state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("swap canvas state: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteCanvas(ctx context.Context, canvasID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM canvases WHERE id=$1`, canvasID)
	if err != nil {
		return fmt.Errorf("delete canvas: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
