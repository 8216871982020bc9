package search

import (
	"context"
	"sort"
	"strings"

	"github.com/samber/lo"

	"retroboard/api/internal/board"
)

// BoardLoader reads a board snapshot.
type BoardLoader interface {
	LoadBoard(ctx context.Context, boardID string) (board.Board, error)
}

// BoardScan searches a loaded board by case-insensitive substring. It backs
// deployments that run without PostgreSQL.
type BoardScan struct {
	loader BoardLoader
}

func NewBoardScan(loader BoardLoader) *BoardScan {
	return &BoardScan{loader: loader}
}

func (s *BoardScan) Search(ctx context.Context, q Query) ([]Result, int, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" {
		return nil, 0, nil
	}
	b, err := s.loader.LoadBoard(ctx, q.BoardID)
	if err != nil {
		return nil, 0, err
	}

	var matches []Result
	for _, col := range board.OrderedColumns(b) {
		cards := lo.Filter(lo.Values(col.Cards), func(c board.Card, _ int) bool {
			return strings.Contains(strings.ToLower(c.Content), needle)
		})
		sort.Slice(cards, func(i, j int) bool {
			if !cards[i].CreatedAt.Equal(cards[j].CreatedAt) {
				return cards[i].CreatedAt.Before(cards[j].CreatedAt)
			}
			return cards[i].ID < cards[j].ID
		})
		for _, c := range cards {
			matches = append(matches, Result{
				CardID:   c.ID,
				BoardID:  b.ID,
				ColumnID: col.ID,
				Content:  c.Content,
				Snippet:  c.Content,
			})
		}
	}

	total := len(matches)
	start := min(q.offset(), total)
	end := min(start+q.limit(), total)
	return matches[start:end], total, nil
}
