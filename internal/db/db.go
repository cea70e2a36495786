// Package db provides database connection handling for MapNest.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	// DefaultMaxOpenConns caps concurrent connections to the database.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns keeps a small pool of warm connections.
	DefaultMaxIdleConns = 5
	// DefaultConnMaxLifetime recycles connections to avoid stale state.
	DefaultConnMaxLifetime = 5 * time.Minute
)

// Open connects to PostgreSQL using the given URL, applies pool defaults,
// and verifies the connection with a ping.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(DefaultMaxOpenConns)
	conn.SetMaxIdleConns(DefaultMaxIdleConns)
	conn.SetConnMaxLifetime(DefaultConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return conn, nil
}
