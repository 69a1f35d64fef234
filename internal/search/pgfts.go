package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
// It searches the canvases table's generated fts column (title plus the
// extracted node text stored in search_text).
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a plainto_tsquery over the canvases table with ts_headline
// snippets, ranked by ts_rank.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM canvases c
		WHERE c.fts @@ plainto_tsquery('english', $1)
	`, q.Text).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT c.id, c.title,
			ts_headline('english', coalesce(c.search_text, ''), plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet
		FROM canvases c
		WHERE c.fts @@ plainto_tsquery('english', $1)
		ORDER BY ts_rank(c.fts, plainto_tsquery('english', $1)) DESC
		LIMIT %d OFFSET %d
	`, limit, offset), q.Text)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all canvas records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]CanvasRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, search_text
		FROM canvases
	`)
	if err != nil {
		return nil, fmt.Errorf("load canvases: %w", err)
	}
	defer rows.Close()

	records := make([]CanvasRecord, 0)
	for rows.Next() {
		var r CanvasRecord
		if err := rows.Scan(&r.ID, &r.Title, &r.Content); err != nil {
			return nil, fmt.Errorf("scan canvas record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate canvases: %w", err)
	}
	return records, nil
}
