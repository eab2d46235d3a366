package queue

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const purgeTimeout = 2 * time.Minute

// GarbageCollector drops dead-lettered profile jobs once they pass retention.
// Failed analyses are never retried, so the DLQ only exists for inspection.
type GarbageCollector struct {
	purger    DLQPurger
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
	purged    atomic.Int64
}

// NewGarbageCollector creates a collector. A nil purger makes every sweep a no-op.
func NewGarbageCollector(purger DLQPurger, interval, retention time.Duration, logger *zap.Logger) *GarbageCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GarbageCollector{
		purger:    purger,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Start sweeps once immediately, then every interval until ctx is cancelled
func (gc *GarbageCollector) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	gc.sweep(ctx)

	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			gc.sweep(ctx)
		}
	}
}

// Purged is the number of messages dropped since the collector was created
func (gc *GarbageCollector) Purged() int64 {
	return gc.purged.Load()
}

func (gc *GarbageCollector) sweep(ctx context.Context) {
	if err := gc.collect(ctx); err != nil {
		gc.logger.Warn("dlq_gc_failed", zap.Error(err))
	}
}

func (gc *GarbageCollector) collect(ctx context.Context) error {
	if gc.purger == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()

	n, err := gc.purger.PurgeOlderThan(ctx, gc.retention)
	if n > 0 {
		total := gc.purged.Add(int64(n))
		gc.logger.Info("dlq_gc_purged",
			zap.Int("count", n),
			zap.Int64("total", total),
			zap.Duration("retention", gc.retention),
		)
	}
	if err != nil {
		return fmt.Errorf("DLQ purge: %w", err)
	}
	return nil
}
