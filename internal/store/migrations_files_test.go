package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	migrations, err := loadMigrations(filepath.Join("..", "..", "db", "migrations"))
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("no migrations discovered")
	}
	for i, m := range migrations {
		if i > 0 && m.version <= migrations[i-1].version {
			t.Fatalf("migrations out of order: %s after %s", m.name, migrations[i-1].name)
		}
		if m.upPath == "" || m.downPath == "" {
			t.Fatalf("migration %s must include both up and down files", m.name)
		}
	}
}

func TestLoadMigrationsOrdersNumerically(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"10_later.up.sql", "10_later.down.sql", "9_earlier.up.sql", "9_earlier.down.sql", "README.md"} {
		writeMigrationFile(t, dir, name)
	}

	migrations, err := loadMigrations(dir)
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}
	if len(migrations) != 2 || migrations[0].name != "9_earlier" || migrations[1].name != "10_later" {
		t.Fatalf("unexpected order %+v", migrations)
	}
}

func TestLoadMigrationsRejectsBrokenSets(t *testing.T) {
	cases := map[string][]string{
		"needs both": {"0001_boards.up.sql"},
		"used by":    {"0001_boards.up.sql", "0001_boards.down.sql", "0001_cards.up.sql", "0001_cards.down.sql"},
	}
	for want, files := range cases {
		dir := t.TempDir()
		for _, name := range files {
			writeMigrationFile(t, dir, name)
		}
		_, err := loadMigrations(dir)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error containing %q, got %v", want, err)
		}
	}
}

func writeMigrationFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
