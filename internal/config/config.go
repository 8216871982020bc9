package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr           string
	DatabaseURL    string
	DBMaxConns     int
	MigrationsDir  string
	CORSOrigin     string
	MeiliURL       string
	MeiliMasterKey string
	// Redis is optional; presence stays in process memory without it.
	RedisURL string
	// Presence ledger bounds
	PresenceTTL      time.Duration
	PresenceCapacity int
	// How long an unconfirmed grouping stays open
	GroupingTTL time.Duration
}

func Load() Config {
	return Config{
		Addr:             getenv("API_ADDR", ":8787"),
		DatabaseURL:      getenv("DATABASE_URL", ""),
		DBMaxConns:       getenvInt("RETRO_DB_MAX_CONNS", 20),
		MigrationsDir:    getenv("RETRO_MIGRATIONS_DIR", "./db/migrations"),
		CORSOrigin:       getenv("RETRO_CORS_ORIGIN", "*"),
		MeiliURL:         getenv("MEILI_URL", ""),
		MeiliMasterKey:   getenv("MEILI_MASTER_KEY", ""),
		RedisURL:         getenv("REDIS_URL", ""),
		PresenceTTL:      time.Duration(getenvInt("RETRO_PRESENCE_TTL_SECONDS", 120)) * time.Second,
		PresenceCapacity: getenvInt("RETRO_PRESENCE_CAPACITY", 256),
		GroupingTTL:      time.Duration(getenvInt("RETRO_GROUPING_TTL_SECONDS", 300)) * time.Second,
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
