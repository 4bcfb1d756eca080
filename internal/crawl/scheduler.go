package crawl

import (
	"context"
	"log/slog"
	"time"
)

// Crawler performs one crawl run.
type Crawler interface {
	Run(ctx context.Context) (*RunReport, error)
}

// Scheduler runs crawls on a periodic interval.
// Runs are sequential: a tick that fires while a run is in flight is dropped.
type Scheduler struct {
	interval time.Duration
	crawler  Crawler

	// onRun observes every finished run. Used by tests.
	onRun func(*RunReport, error)
}

// NewScheduler creates a scheduler for crawler.
func NewScheduler(interval time.Duration, crawler Crawler) *Scheduler {
	return &Scheduler{
		interval: interval,
		crawler:  crawler,
	}
}

// Start runs one crawl immediately, then one per interval.
// Runs until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting crawl scheduler", "interval", s.interval)

	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
			// Drop a tick that queued up while the run was in flight.
			select {
			case <-ticker.C:
			default:
			}
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")
			return nil
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	report, err := s.crawler.Run(ctx)
	if err != nil {
		slog.Error("[Scheduler] Crawl run failed", "error", err, "duration", time.Since(start))
	} else {
		slog.Info("[Scheduler] Crawl run finished",
			"run_id", report.RunID,
			"observations", report.Observations,
			"alerts", report.AlertsSent,
			"duration", time.Since(start),
		)
	}

	if s.onRun != nil {
		s.onRun(report, err)
	}
}
