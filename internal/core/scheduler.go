package core

// scheduler.go runs background maintenance. It currently prunes job
// history older than the configured retention. Failures are logged and
// retried on the next tick; they never stop the application.

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/merchant-import/internal/config"
)

// StartHistoryPruner runs immediately, then every CheckInterval, until
// ctx is cancelled. It does nothing when the service has no recorder.
func (s *Service) StartHistoryPruner(ctx context.Context, cfg config.HistoryConfig) {
	if s.history == nil {
		return
	}

	slog.Info("history pruner started",
		"retention_days", cfg.RetentionDays,
		"interval", cfg.CheckInterval,
	)

	s.pruneHistory(ctx, cfg.RetentionDays)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history pruner stopped")
			return
		case <-ticker.C:
			s.pruneHistory(ctx, cfg.RetentionDays)
		}
	}
}

func (s *Service) pruneHistory(ctx context.Context, retentionDays int) {
	start := time.Now()
	cutoff := start.AddDate(0, 0, -retentionDays)

	purged, err := s.history.PurgeJobs(ctx, cutoff)
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return
	}
	slog.Info("pruned job history",
		"jobs_purged", purged,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
