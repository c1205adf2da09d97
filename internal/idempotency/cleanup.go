package idempotency

import (
	"log/slog"
	"time"
)

// DefaultExpiry is how long a recorded response stays replayable. A
// retry arriving later than this is treated as a new request.
const DefaultExpiry = 24 * time.Hour

// CleanupOldKeys drops keys older than expiry and returns how many were
// removed.
func CleanupOldKeys(repo Repository, expiry time.Duration) (int64, error) {
	deleted, err := repo.DeleteOlderThan(expiry)
	if err != nil {
		slog.Error("idempotency key sweep failed", "error", err)
		return 0, err
	}
	if deleted > 0 {
		slog.Info("swept expired idempotency keys", "deleted", deleted, "older_than", expiry)
	}
	return deleted, nil
}

// RunPeriodicCleanup sweeps expired keys on a ticker until stopChan is
// closed. It blocks, so run it in a goroutine; one sweep also runs up
// front so a restart does not wait a full interval.
func RunPeriodicCleanup(repo Repository, interval time.Duration, expiry time.Duration, stopChan <-chan struct{}) {
	sweep := func(stage string) {
		if _, err := CleanupOldKeys(repo, expiry); err != nil {
			slog.Error(stage+" idempotency cleanup failed", "error", err)
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sweep("startup")
	for {
		select {
		case <-ticker.C:
			sweep("periodic")
		case <-stopChan:
			slog.Info("stopping idempotency cleanup")
			return
		}
	}
}
