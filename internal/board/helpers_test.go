package board

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errInjected = errors.New("injected store failure")

// faultyStore fails selected writes or erases and records every call.
type faultyStore struct {
	Store
	failWrite func(Key) bool
	failErase func(Key) bool
	calls     []string
}

func (f *faultyStore) Write(ctx context.Context, key Key, value any) error {
	f.calls = append(f.calls, "write "+key.Path())
	if f.failWrite != nil && f.failWrite(key) {
		return errInjected
	}
	return f.Store.Write(ctx, key, value)
}

func (f *faultyStore) Erase(ctx context.Context, key Key) error {
	f.calls = append(f.calls, "erase "+key.Path())
	if f.failErase != nil && f.failErase(key) {
		return errInjected
	}
	return f.Store.Erase(ctx, key)
}

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// seededStore returns a board with columns "went-well" and "to-improve" and
// one card "card_a" in went-well.
func seededStore(t *testing.T) (*MemoryStore, CardKey) {
	t.Helper()
	ctx := context.Background()
	st := NewMemoryStore()
	boardKey := BoardKey{BoardID: "board_1"}
	if err := st.Write(ctx, boardKey, Settings{Title: "Sprint 12", Phase: "collect", Mode: "guided", CreatedAt: baseTime}); err != nil {
		t.Fatalf("write board: %v", err)
	}
	for i, id := range []string{"went-well", "to-improve"} {
		if err := st.Write(ctx, boardKey.Column(id), Column{Title: id, Position: i}); err != nil {
			t.Fatalf("write column %s: %v", id, err)
		}
	}
	key := boardKey.Column("went-well").Card("card_a")
	if err := st.Write(ctx, key, NewCard("card_a", "Release went smoothly", "u9", baseTime)); err != nil {
		t.Fatalf("write card: %v", err)
	}
	return st, key
}

func addCard(t *testing.T, st Store, boardID, columnID, cardID string, createdAt time.Time) CardKey {
	t.Helper()
	key := BoardKey{BoardID: boardID}.Column(columnID).Card(cardID)
	if err := st.Write(context.Background(), key, NewCard(cardID, "content "+cardID, "u9", createdAt)); err != nil {
		t.Fatalf("write card %s: %v", cardID, err)
	}
	return key
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + string(rune('0'+n))
	}
}
