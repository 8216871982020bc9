package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"retroboard/api/internal/board"
)

func TestPostgresStoreRejectsBadKeysWithoutQuerying(t *testing.T) {
	s := NewPostgresStore(nil)
	ctx := context.Background()

	if err := s.Write(ctx, board.CardKey{BoardID: "board_1", ColumnID: "", CardID: "card_a"}, board.Card{}); !errors.Is(err, board.ErrValidation) {
		t.Fatalf("expected ErrValidation for incomplete key, got %v", err)
	}
	if err := s.Erase(ctx, board.BoardKey{}); !errors.Is(err, board.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty board key, got %v", err)
	}

	key := board.BoardKey{BoardID: "board_1"}.Column("went-well").Card("card_a").Votes()
	if err := s.Write(ctx, key, "three"); !errors.Is(err, board.ErrValueType) {
		t.Fatalf("expected ErrValueType, got %v", err)
	}
}

func TestPostgresStoreBoardLifecycle(t *testing.T) {
	db, ctx := openTestDB(t)
	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	s := NewPostgresStore(db)

	created := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	boardKey := board.BoardKey{BoardID: "board_pg"}
	mustWrite(t, s, boardKey, board.Settings{Title: "Sprint 12", Phase: "collect", Mode: "guided", CreatedAt: created})
	mustWrite(t, s, boardKey.Column("went-well"), board.Column{Title: "Went well", Position: 0})
	mustWrite(t, s, boardKey.Column("to-improve"), board.Column{Title: "To improve", Position: 1})

	cardA := boardKey.Column("went-well").Card("card_a")
	cardB := boardKey.Column("to-improve").Card("card_b")
	mustWrite(t, s, cardA, board.NewCard("card_a", "pairing", "u1", created))
	mustWrite(t, s, cardB, board.NewCard("card_b", "deploys", "u2", created.Add(time.Minute)))

	// Vote on card_a, then add a comment and a reaction.
	mustWrite(t, s, cardA.Votes(), 1)
	mustWrite(t, s, cardA.Voter("u2"), 1)
	mustWrite(t, s, cardA.Comment("cmt_1"), board.Comment{Author: "u3", Content: "agreed", CreatedAt: created})
	mustWrite(t, s, cardA.Reaction("🎉"), board.Reaction{Count: 1, Users: []string{"u3"}})

	// Relocate card_a next to card_b: write at the target then erase the source.
	loaded, err := s.LoadBoard(ctx, "board_pg")
	if err != nil {
		t.Fatalf("LoadBoard: %v", err)
	}
	moved := loaded.Columns["went-well"].Cards["card_a"]
	moved.GroupID = ""
	mustWrite(t, s, boardKey.Column("to-improve").Card("card_a"), moved)
	if err := s.Erase(ctx, cardA); err != nil {
		t.Fatalf("erase source: %v", err)
	}

	group := board.Group{Name: "Delivery", CreatedAt: created.Add(time.Minute)}
	mustWrite(t, s, boardKey.Column("to-improve").Group("grp_1"), group)
	mustWrite(t, s, boardKey.Column("to-improve").Card("card_a").Group(), "grp_1")
	mustWrite(t, s, cardB.Group(), "grp_1")

	loaded, err = s.LoadBoard(ctx, "board_pg")
	if err != nil {
		t.Fatalf("LoadBoard: %v", err)
	}
	if _, ok := loaded.Columns["went-well"].Cards["card_a"]; ok {
		t.Fatal("expected card_a gone from its source column")
	}
	card := loaded.Columns["to-improve"].Cards["card_a"]
	if card.Votes != 1 || card.UserVote("u2") != 1 {
		t.Fatalf("expected votes to survive the move, got %+v", card)
	}
	if card.GroupID != "grp_1" || loaded.Columns["to-improve"].Cards["card_b"].GroupID != "grp_1" {
		t.Fatal("expected both cards linked to grp_1")
	}
	if len(card.Comments) != 1 || card.Reactions["🎉"].Count != 1 {
		t.Fatalf("expected comment and reaction to survive the move, got %+v", card)
	}
	if got := loaded.Columns["to-improve"].Groups["grp_1"]; got.Name != "Delivery" || !got.CreatedAt.Equal(group.CreatedAt) {
		t.Fatalf("unexpected group %+v", got)
	}

	// Erasing a voter entry and the tally brings the card back to zero.
	if err := s.Erase(ctx, boardKey.Column("to-improve").Card("card_a").Voter("u2")); err != nil {
		t.Fatalf("erase voter: %v", err)
	}
	mustWrite(t, s, boardKey.Column("to-improve").Card("card_a").Votes(), 0)
	loaded, _ = s.LoadBoard(ctx, "board_pg")
	if c := loaded.Columns["to-improve"].Cards["card_a"]; c.Votes != 0 || len(c.Voters) != 0 {
		t.Fatalf("expected cleared vote, got %+v", c)
	}

	// A field write against the wrong column is a missing card.
	if err := s.Write(ctx, cardA.Votes(), 2); !errors.Is(err, board.ErrCardNotFound) {
		t.Fatalf("expected ErrCardNotFound, got %v", err)
	}

	if _, err := s.LoadBoard(ctx, "board_missing"); !errors.Is(err, board.ErrBoardNotFound) {
		t.Fatalf("expected ErrBoardNotFound, got %v", err)
	}
}

func mustWrite(t *testing.T, s *PostgresStore, key board.Key, value any) {
	t.Helper()
	if err := s.Write(context.Background(), key, value); err != nil {
		t.Fatalf("write %s: %v", key.Path(), err)
	}
}
