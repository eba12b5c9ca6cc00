package service

import (
	"context"
	"time"
)

// PruneStale deletes rooms that have not changed for longer than olderThan
func (c *Coordinator) PruneStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()
	return c.store.DeleteStaleRooms(ctx, c.now().Add(-olderThan))
}

// RunCleanupJob prunes stale rooms every interval until ctx is cancelled
func (c *Coordinator) RunCleanupJob(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := c.PruneStale(ctx, ttl)
			if err != nil {
				c.log.Error("cleanup: failed to delete stale rooms", "error", err)
			} else if deleted > 0 {
				c.log.Info("cleanup: deleted stale rooms", "count", deleted)
			}
		}
	}
}
