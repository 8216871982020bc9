// Package presence tracks which users are composing a new card, and in which
// column. Entries are advisory and short-lived.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

const (
	DefaultCapacity = 256
	DefaultTTL      = 2 * time.Minute
)

type Entry struct {
	UserID      string    `json:"userId"`
	ColumnID    string    `json:"columnId"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Ledger holds the presence entries of one board, at most one per user.
// When full, starting a new user evicts the least recently updated entry.
// Entries older than the TTL are ignored and pruned.
type Ledger struct {
	mu       sync.Mutex
	entries  map[string]Entry
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

func NewLedger(capacity int, ttl time.Duration) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		entries:  make(map[string]Entry),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Start records that userID is adding a card in columnID, replacing any
// earlier entry for that user.
func (l *Ledger) Start(userID, columnID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if _, ok := l.entries[userID]; !ok && len(l.entries) >= l.capacity {
		l.pruneLocked(now)
		if len(l.entries) >= l.capacity {
			delete(l.entries, l.oldestLocked())
		}
	}
	l.entries[userID] = Entry{UserID: userID, ColumnID: columnID, LastUpdated: now}
}

func (l *Ledger) Stop(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, userID)
}

// UsersAddingCardsIn lists the fresh entries for columnID, leaving out
// callerID, oldest first.
func (l *Ledger) UsersAddingCardsIn(columnID, callerID string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(l.now())
	entries := lo.Filter(lo.Values(l.entries), func(e Entry, _ int) bool {
		return e.ColumnID == columnID && e.UserID != callerID
	})
	sortEntries(entries)
	return entries
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Ledger) pruneLocked(now time.Time) {
	if l.ttl <= 0 {
		return
	}
	for userID, entry := range l.entries {
		if now.Sub(entry.LastUpdated) > l.ttl {
			delete(l.entries, userID)
		}
	}
}

func (l *Ledger) oldestLocked() string {
	var (
		oldest string
		at     time.Time
	)
	for userID, entry := range l.entries {
		if oldest == "" || entry.LastUpdated.Before(at) || (entry.LastUpdated.Equal(at) && userID < oldest) {
			oldest = userID
			at = entry.LastUpdated
		}
	}
	return oldest
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].LastUpdated.Equal(entries[j].LastUpdated) {
			return entries[i].LastUpdated.Before(entries[j].LastUpdated)
		}
		return entries[i].UserID < entries[j].UserID
	})
}
