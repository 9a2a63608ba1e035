package cache

import (
	"context"
	"log/slog"
	"time"
)

// RunSweeper deletes stale entries once per day until ctx is canceled.
// An immediate sweep runs at startup so a long-stopped instance catches up
// without waiting a full interval.
func (c *Cache) RunSweeper(ctx context.Context, maxAge time.Duration, logger *slog.Logger) {
	sweep := func() {
		deleted, err := c.Sweep(ctx, maxAge)
		if err != nil {
			logger.Error("cache sweep failed", "err", err)
			return
		}
		if deleted > 0 {
			logger.Info("cache sweep", "deleted", deleted, "max_age", maxAge)
		}
	}

	sweep()

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
