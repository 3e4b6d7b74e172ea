// Package scheduler owns the pipeline's time-based triggers: the fixed-rate
// ingest tick and the daily settlement run.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// IngestLoop runs fn every interval until ctx is cancelled. The first run
// fires immediately so a restart does not wait a full interval to resume
// collection. A failed cycle is logged and the loop keeps going.
func IngestLoop(ctx context.Context, interval time.Duration, logger *slog.Logger, fn func(context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runOnce := func() {
		if err := fn(ctx); err != nil {
			logger.Error("ingest_cycle_failed", "err", err)
		}
	}

	runOnce()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			runOnce()
		}
	}
}
