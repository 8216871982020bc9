package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"API_ADDR", "DATABASE_URL", "REDIS_URL", "RETRO_PRESENCE_TTL_SECONDS", "RETRO_GROUPING_TTL_SECONDS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Addr != ":8787" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.DatabaseURL != "" || cfg.RedisURL != "" {
		t.Fatal("expected optional backends to default to empty")
	}
	if cfg.PresenceTTL != 2*time.Minute {
		t.Fatalf("PresenceTTL = %v", cfg.PresenceTTL)
	}
	if cfg.GroupingTTL != 5*time.Minute {
		t.Fatalf("GroupingTTL = %v", cfg.GroupingTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_ADDR", ":9000")
	t.Setenv("RETRO_PRESENCE_CAPACITY", "16")
	t.Setenv("RETRO_PRESENCE_TTL_SECONDS", "30")

	cfg := Load()
	if cfg.Addr != ":9000" || cfg.PresenceCapacity != 16 || cfg.PresenceTTL != 30*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestGetenvIntFallsBackOnGarbage(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 7},
		{"12", 12},
		{"twelve", 7},
		{"-3", 7},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("RETRO_TEST_INT", tt.value)
			if got := getenvInt("RETRO_TEST_INT", 7); got != tt.want {
				t.Fatalf("getenvInt(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}
