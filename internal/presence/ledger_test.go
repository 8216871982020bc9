package presence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLedger(capacity int, ttl time.Duration) (*Ledger, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	ledger := NewLedger(capacity, ttl)
	ledger.now = clock.Now
	return ledger, clock
}

func TestLedgerExcludesCaller(t *testing.T) {
	ledger, clock := newTestLedger(10, time.Minute)

	ledger.Start("u1", "colA")
	if got := ledger.UsersAddingCardsIn("colA", "u1"); len(got) != 0 {
		t.Fatalf("expected no other users, got %v", got)
	}

	clock.Advance(time.Second)
	ledger.Start("u2", "colA")
	got := ledger.UsersAddingCardsIn("colA", "u1")
	if len(got) != 1 || got[0].UserID != "u2" {
		t.Fatalf("expected [u2], got %v", got)
	}
}

func TestLedgerLatestWriteWins(t *testing.T) {
	ledger, clock := newTestLedger(10, time.Minute)
	ledger.Start("u2", "colA")
	clock.Advance(time.Second)
	ledger.Start("u2", "colB")

	if got := ledger.UsersAddingCardsIn("colA", "u1"); len(got) != 0 {
		t.Fatalf("expected u2 moved away from colA, got %v", got)
	}
	got := ledger.UsersAddingCardsIn("colB", "u1")
	if len(got) != 1 || !got[0].LastUpdated.Equal(clock.now) {
		t.Fatalf("unexpected colB entries %v", got)
	}
	if ledger.Len() != 1 {
		t.Fatalf("expected one entry per user, got %d", ledger.Len())
	}
}

func TestLedgerStop(t *testing.T) {
	ledger, _ := newTestLedger(10, time.Minute)
	ledger.Start("u2", "colA")
	ledger.Stop("u2")
	ledger.Stop("never-started")
	if got := ledger.UsersAddingCardsIn("colA", "u1"); len(got) != 0 {
		t.Fatalf("expected empty after stop, got %v", got)
	}
}

func TestLedgerHasNoDisplayCap(t *testing.T) {
	ledger, clock := newTestLedger(10, time.Minute)
	for _, user := range []string{"u2", "u3", "u4", "u5", "u6"} {
		ledger.Start(user, "colA")
		clock.Advance(time.Millisecond)
	}
	got := ledger.UsersAddingCardsIn("colA", "u1")
	if len(got) != 5 {
		t.Fatalf("expected all 5 entries, got %d", len(got))
	}
	if got[0].UserID != "u2" || got[4].UserID != "u6" {
		t.Fatalf("expected oldest first, got %v", got)
	}
}

func TestLedgerEvictsOldestWhenFull(t *testing.T) {
	ledger, clock := newTestLedger(2, 0)
	ledger.Start("u1", "colA")
	clock.Advance(time.Second)
	ledger.Start("u2", "colA")
	clock.Advance(time.Second)
	ledger.Start("u3", "colA")

	got := ledger.UsersAddingCardsIn("colA", "")
	if len(got) != 2 || got[0].UserID != "u2" || got[1].UserID != "u3" {
		t.Fatalf("expected u1 evicted, got %v", got)
	}
}

func TestLedgerDropsStaleEntries(t *testing.T) {
	ledger, clock := newTestLedger(10, time.Minute)
	ledger.Start("u2", "colA")
	clock.Advance(2 * time.Minute)
	if got := ledger.UsersAddingCardsIn("colA", "u1"); len(got) != 0 {
		t.Fatalf("expected stale entry hidden, got %v", got)
	}
	if ledger.Len() != 0 {
		t.Fatal("expected stale entry pruned")
	}
}

func TestRegistryScopesByBoard(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(10, time.Minute)

	if err := registry.Start(ctx, "board_1", "u2", "colA"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	got, err := registry.UsersAddingCardsIn(ctx, "board_2", "colA", "u1")
	if err != nil || len(got) != 0 {
		t.Fatalf("board_2 = %v, %v; want empty", got, err)
	}
	got, _ = registry.UsersAddingCardsIn(ctx, "board_1", "colA", "u1")
	if len(got) != 1 {
		t.Fatalf("board_1 = %v, want one entry", got)
	}

	if err := registry.Stop(ctx, "board_1", "u2"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, ok := registry.ledgers["board_1"]; ok {
		t.Fatal("expected empty ledger released")
	}
}

func TestRegistryStartSurvivesConcurrentStop(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(1000, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = registry.Start(ctx, "board_1", "churn", "colA")
			_ = registry.Stop(ctx, "board_1", "churn")
		}()
		go func(i int) {
			defer wg.Done()
			_ = registry.Start(ctx, "board_1", fmt.Sprintf("u%d", i), "colA")
		}(i)
	}
	wg.Wait()

	got, err := registry.UsersAddingCardsIn(ctx, "board_1", "colA", "churn")
	if err != nil {
		t.Fatalf("UsersAddingCardsIn: %v", err)
	}
	if len(got) != 200 {
		t.Fatalf("expected every started user visible, got %d", len(got))
	}
}
