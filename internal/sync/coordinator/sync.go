package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/stacklok/zoom-search-connector/internal/status"
	pkgsync "github.com/stacklok/zoom-search-connector/internal/sync"
)

// loadLastRuns seeds the schedule from persisted run summaries so a restart keeps the cadence
func (c *defaultCoordinator) loadLastRuns(ctx context.Context) {
	if c.status == nil {
		return
	}
	summaries, err := c.status.LoadAll(ctx)
	if err != nil {
		slog.Warn("Failed to load previous run summaries, every mode is due", "error", err)
		return
	}
	for name, summary := range summaries {
		mode, err := pkgsync.ParseMode(name)
		if err != nil || summary == nil {
			continue
		}
		c.lastRun[mode] = summary.StartedAt
	}
}

// nextSyncJob returns the most overdue mode, or false when none is due.
// Modes that never ran are due immediately, in mode order.
func (c *defaultCoordinator) nextSyncJob(now time.Time) (pkgsync.Mode, bool) {
	var (
		next  pkgsync.Mode
		found bool
		best  time.Time
	)
	for _, s := range c.schedules {
		last, ok := c.lastRun[s.mode]
		due := time.Time{}
		if ok {
			due = last.Add(s.interval)
		}
		if due.After(now) {
			continue
		}
		if !found || due.Before(best) {
			next, best, found = s.mode, due, true
		}
	}
	return next, found
}

// processNextSyncJob runs the next due mode, if any. Runs never overlap because
// they execute on the coordinator loop.
func (c *defaultCoordinator) processNextSyncJob(ctx context.Context) {
	mode, ok := c.nextSyncJob(c.now())
	if !ok {
		slog.Debug("No sync mode is due")
		return
	}
	c.performSync(ctx, mode)
}

// performSync executes one mode and records when it was attempted
func (c *defaultCoordinator) performSync(ctx context.Context, mode pkgsync.Mode) {
	// A failed run waits for its next interval too.
	c.lastRun[mode] = c.now()

	slog.Info("Starting scheduled sync", "mode", mode)
	summary, err := c.manager.Run(ctx, mode)
	if err != nil {
		slog.Error("Scheduled sync failed",
			"mode", mode,
			"reason", err.Reason,
			"error", err.Message)
		return
	}
	if summary != nil && summary.Outcome == status.OutcomePartialFailure {
		slog.Warn("Scheduled sync completed with partial failures", "mode", mode, "message", summary.Message)
		return
	}
	slog.Info("Scheduled sync completed", "mode", mode)
}
