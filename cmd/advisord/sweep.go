package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chriscantu/advisord/internal/logging"
)

// runSweeps prunes expired records from the retention-bound layers on a
// fixed interval until ctx is cancelled. The layers start empty on boot,
// so the first sweep waits a full interval.
func runSweeps(ctx context.Context, logger *logging.Logger, deps *dependencies, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			pruned := deps.conv.Prune(ctx, now) + deps.strat.Prune(ctx, now)
			if pruned > 0 {
				logger.Info(ctx, "retention sweep completed",
					zap.Int("records_pruned", pruned),
					zap.Duration("interval", interval))
			}
		}
	}
}
