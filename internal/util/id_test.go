package util

import (
	"strings"
	"testing"
)

func TestNewIDPrefix(t *testing.T) {
	id := NewID("card")
	if !strings.HasPrefix(id, "card_") {
		t.Fatalf("expected card_ prefix, got %q", id)
	}
	if got := len(strings.TrimPrefix(id, "card_")); got != idLength {
		t.Fatalf("expected %d random chars, got %d", idLength, got)
	}
	if strings.ContainsAny(id, "/-") {
		t.Fatalf("id %q contains a reserved character", id)
	}
}

func TestNewIDWithoutPrefix(t *testing.T) {
	if id := NewID(""); len(id) != idLength || strings.Contains(id, "_") {
		t.Fatalf("unexpected bare id %q", id)
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	next := IDFunc("grp")
	for i := 0; i < 1000; i++ {
		id := next()
		if seen[id] {
			t.Fatalf("duplicate id %q after %d draws", id, i)
		}
		seen[id] = true
	}
}
