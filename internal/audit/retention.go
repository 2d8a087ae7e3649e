package audit

import (
	"context"
	"log/slog"
	"time"
)

// Purger removes audit entries older than a cutoff.
type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// RunRetention purges entries older than retentionDays immediately and then
// every interval, until ctx is cancelled. Failures are logged and retried on
// the next tick.
func RunRetention(ctx context.Context, p Purger, retentionDays int, interval time.Duration) {
	if retentionDays <= 0 || interval <= 0 {
		return
	}
	slog.Info("audit retention started", "retention_days", retentionDays, "interval", interval)

	purgeOnce(ctx, p, retentionDays)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("audit retention stopped")
			return
		case <-ticker.C:
			purgeOnce(ctx, p, retentionDays)
		}
	}
}

func purgeOnce(ctx context.Context, p Purger, retentionDays int) {
	start := time.Now()
	cutoff := start.UTC().AddDate(0, 0, -retentionDays)

	n, err := p.Purge(ctx, cutoff)
	if err != nil {
		slog.Error("audit purge failed", "error", err)
		return
	}
	slog.Info("purged audit entries",
		"entries_purged", n,
		"cutoff", cutoff,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
