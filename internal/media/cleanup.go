package media

// cleanup.go provides the background job that removes stale media.
//
// Generated audio and uploaded sources are transient: once the browser has
// fetched the result they only occupy disk (or bucket) space. The cleaner
// runs periodically and deletes objects older than the retention window.
// It is long-running and context-aware for graceful shutdown, and logs
// failures without taking the application down.

import (
	"context"
	"log/slog"
	"time"
)

// CleanupConfig holds settings for the media cleaner. Zero values get
// conservative defaults.
type CleanupConfig struct {
	Retention time.Duration // How long objects are kept (default: 24h)
	Interval  time.Duration // How often the job runs (default: 1h)
}

// Cleaner periodically removes stale objects from a Store.
type Cleaner struct {
	store Store
	cfg   CleanupConfig
}

// NewCleaner creates a cleaner for the given store.
func NewCleaner(store Store, cfg CleanupConfig) *Cleaner {
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Cleaner{store: store, cfg: cfg}
}

// Run executes cleanup cycles until the context is cancelled. The first
// cycle runs immediately on start.
func (c *Cleaner) Run(ctx context.Context) {
	slog.Info("media cleaner started",
		"retention", c.cfg.Retention.String(),
		"interval", c.cfg.Interval.String(),
	)

	c.sweep(ctx)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("media cleaner stopped")
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

// Sweep runs a single cleanup cycle and returns how many objects were
// removed. Exposed for the one-shot cleanup path.
func (c *Cleaner) Sweep(ctx context.Context) (int, error) {
	return c.store.DeleteOlderThan(ctx, time.Now().Add(-c.cfg.Retention))
}

func (c *Cleaner) sweep(ctx context.Context) {
	start := time.Now()
	removed, err := c.Sweep(ctx)
	if err != nil {
		slog.Error("media cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("media cleanup completed",
			"objects_removed", removed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
