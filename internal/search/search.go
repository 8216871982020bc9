// Package search finds cards by their text. Meilisearch is used when it is
// reachable; PostgreSQL full-text search or a board scan serves otherwise.
package search

import "context"

// Result is a single card hit returned to the caller.
type Result struct {
	CardID   string `json:"cardId"`
	BoardID  string `json:"boardId"`
	ColumnID string `json:"columnId"`
	Content  string `json:"content"`
	Snippet  string `json:"snippet"`
}

// Query describes a search request scoped to one board.
type Query struct {
	BoardID string
	Text    string
	Limit   int
	Offset  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a card search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
}

// CardRecord is the data we index for a card.
type CardRecord struct {
	ID        string `json:"id"`
	BoardID   string `json:"boardId"`
	ColumnID  string `json:"columnId"`
	Content   string `json:"content"`
	CreatedBy string `json:"createdBy"`
	CreatedAt int64  `json:"createdAt"`
}

const defaultLimit = 20

func (q Query) limit() int {
	if q.Limit <= 0 {
		return defaultLimit
	}
	return q.Limit
}

func (q Query) offset() int {
	if q.Offset < 0 {
		return 0
	}
	return q.Offset
}
