// Package coordinator runs sync modes in the background on configured intervals.
//
// It sits on top of sync.Manager and handles:
//
//   - Background scheduling using time.Ticker with jitter
//   - Picking the most overdue mode on every tick
//   - Restoring the cadence from persisted run summaries on startup
//   - Graceful shutdown
//
// # Usage Example
//
//	manager := sync.NewManager(source, target, store, settings, opts...)
//	c := coordinator.New(manager, status.NewFilePersistence(cfg.GetStatusPath()), cfg)
//
//	go func() {
//	    if err := c.Start(ctx); err != nil {
//	        slog.Error("coordinator stopped", "error", err)
//	    }
//	}()
//
//	// ... on shutdown
//	_ = c.Stop()
//
// # Scheduling
//
// A mode is due once its interval has passed since its last attempt. Modes that
// never ran are due at startup. On each tick at most one mode runs, and it runs
// on the coordinator's own goroutine, so two sync runs never overlap. A run that
// outlives several intervals simply delays the next check.
//
// # Error Handling
//
// Failed runs are logged and wait for their next interval; the coordinator keeps
// running. Run summaries are persisted by the manager, not by the coordinator.
package coordinator
