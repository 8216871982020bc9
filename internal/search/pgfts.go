package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search on cards.fts.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	const where = `c.board_id = $1 AND c.fts @@ plainto_tsquery('english', $2)`

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM cards c WHERE `+where, q.BoardID, q.Text).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT c.id, c.board_id, c.column_id, c.content,
			ts_headline('english', c.content, plainto_tsquery('english', $2), 'MaxFragments=1,MaxWords=30') AS snippet
		FROM cards c
		WHERE %s
		ORDER BY ts_rank(c.fts, plainto_tsquery('english', $2)) DESC, c.created_at
		LIMIT %d OFFSET %d`, where, q.limit(), q.offset()), q.BoardID, q.Text)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.CardID, &r.BoardID, &r.ColumnID, &r.Content, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every card for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]CardRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, board_id, column_id, content, created_by, created_at
		FROM cards
	`)
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	defer rows.Close()

	cards := make([]CardRecord, 0)
	for rows.Next() {
		var (
			c         CardRecord
			createdAt sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.BoardID, &c.ColumnID, &c.Content, &c.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		if createdAt.Valid {
			c.CreatedAt = createdAt.Time.Unix()
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return cards, nil
}
