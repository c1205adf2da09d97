// Package db provides database utilities and connection handling for Mimy.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	// maxOpenConns bounds the connection pool size.
	maxOpenConns = 25

	// maxIdleConns keeps a small warm pool for bursty ranking traffic.
	maxIdleConns = 5

	// connMaxLifetime recycles connections so load balancer failovers
	// and credential rotations take effect without a restart.
	connMaxLifetime = 30 * time.Minute
)

// Open connects to PostgreSQL, configures the connection pool, and
// verifies the connection with a ping before returning.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(maxOpenConns)
	conn.SetMaxIdleConns(maxIdleConns)
	conn.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return conn, nil
}
