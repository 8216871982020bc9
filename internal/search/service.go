package search

import (
	"context"
	"log"
	"time"
)

// Service is the facade that tries Meilisearch first and falls back to the
// configured searcher (PG FTS or a board scan).
type Service struct {
	meili    *Meili
	fallback Searcher
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, fallback Searcher) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search tries Meilisearch if healthy, otherwise uses the fallback.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back: %v", err)
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		log.Printf("search: fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexCard indexes a card (fire-and-forget to Meilisearch).
func (s *Service) IndexCard(card CardRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexCards([]CardRecord{card}); err != nil {
			log.Printf("search: index card %s: %v", card.ID, err)
		}
	}()
}

// ReindexAllFromPG pushes every card in PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context, pg *PgFTS) {
	if s.meili == nil || !s.meili.Healthy() || pg == nil {
		return
	}
	cards, err := pg.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexCards(cards); err != nil {
		log.Printf("search: reindex cards: %v", err)
		return
	}
	log.Printf("search: reindexed %d cards", len(cards))
}

// Record converts card fields into the indexed shape.
func Record(boardID, columnID, cardID, content, createdBy string, createdAt time.Time) CardRecord {
	return CardRecord{
		ID:        cardID,
		BoardID:   boardID,
		ColumnID:  columnID,
		Content:   content,
		CreatedBy: createdBy,
		CreatedAt: createdAt.Unix(),
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
