package idempotency

import (
	"context"
	"log/slog"
	"time"
)

// DefaultExpiry bounds how long a completed export stays replayable. A day
// covers any realistic client retry while keeping storage flat.
const DefaultExpiry = 24 * time.Hour

// CleanupOldRecords drops records older than expiry and reports the count.
func CleanupOldRecords(repo Repository, expiry time.Duration) (int64, error) {
	deleted, err := repo.DeleteOlderThan(expiry)
	if err != nil {
		slog.Error("failed to clean up idempotency records", "error", err)
		return 0, err
	}

	if deleted > 0 {
		slog.Info("cleaned up idempotency records", "deleted", deleted, "older_than", expiry)
	}
	return deleted, nil
}

// RunPeriodicCleanup sweeps expired records every interval until ctx is
// canceled. It also sweeps once on startup, and blocks, so run it in its own
// goroutine.
func RunPeriodicCleanup(ctx context.Context, repo Repository, interval, expiry time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := CleanupOldRecords(repo, expiry); err != nil {
		slog.Error("initial idempotency cleanup failed", "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if _, err := CleanupOldRecords(repo, expiry); err != nil {
				slog.Error("periodic idempotency cleanup failed", "error", err)
			}
		case <-ctx.Done():
			slog.Info("stopping idempotency cleanup")
			return
		}
	}
}
