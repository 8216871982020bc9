// Package store persists boards in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const defaultMaxOpenConns = 20

// Open connects through the pgx stdlib driver and verifies the connection.
// maxOpenConns <= 0 uses the default pool size.
func Open(ctx context.Context, databaseURL string, maxOpenConns ...int) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	maxOpen := defaultMaxOpenConns
	if len(maxOpenConns) > 0 && maxOpenConns[0] > 0 {
		maxOpen = maxOpenConns[0]
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(max(1, maxOpen/2))
	db.SetMaxOpenConns(maxOpen)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}
