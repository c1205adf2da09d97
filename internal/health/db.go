package health

import (
	"context"
	"database/sql"
	"time"
)

// checkTimeout bounds a single dependency probe so a stalled dependency
// cannot hang the readiness endpoint.
const checkTimeout = 2 * time.Second

// DBChecker probes a SQL database.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker returns a checker over the given connection pool.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}
