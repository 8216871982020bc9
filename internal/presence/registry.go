package presence

import (
	"context"
	"sync"
	"time"
)

// Registry keeps one in-memory Ledger per board.
type Registry struct {
	mu       sync.Mutex
	ledgers  map[string]*Ledger
	capacity int
	ttl      time.Duration
}

func NewRegistry(capacity int, ttl time.Duration) *Registry {
	return &Registry{
		ledgers:  make(map[string]*Ledger),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Start holds r.mu across the write so a concurrent Stop cannot release the
// board's ledger in between.
func (r *Registry) Start(_ context.Context, boardID, userID, columnID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ledger, ok := r.ledgers[boardID]
	if !ok {
		ledger = NewLedger(r.capacity, r.ttl)
		r.ledgers[boardID] = ledger
	}
	ledger.Start(userID, columnID)
	return nil
}

func (r *Registry) Stop(_ context.Context, boardID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ledger, ok := r.ledgers[boardID]
	if !ok {
		return nil
	}
	ledger.Stop(userID)
	if ledger.Len() == 0 {
		delete(r.ledgers, boardID)
	}
	return nil
}

func (r *Registry) UsersAddingCardsIn(_ context.Context, boardID, columnID, callerID string) ([]Entry, error) {
	ledger := r.ledger(boardID)
	if ledger == nil {
		return []Entry{}, nil
	}
	return ledger.UsersAddingCardsIn(columnID, callerID), nil
}

func (r *Registry) ledger(boardID string) *Ledger {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledgers[boardID]
}
