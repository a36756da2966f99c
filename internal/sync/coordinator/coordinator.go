package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/stacklok/zoom-search-connector/internal/config"
	"github.com/stacklok/zoom-search-connector/internal/status"
	pkgsync "github.com/stacklok/zoom-search-connector/internal/sync"
)

const (
	// basePollingInterval is the base interval at which the coordinator checks for due modes
	basePollingInterval = time.Minute
)

// ErrNothingScheduled is returned by Start when no mode has an interval configured
var ErrNothingScheduled = errors.New("no sync mode is scheduled")

// Coordinator runs sync modes on their configured intervals
type Coordinator interface {
	// Start begins background sync coordination
	// Blocks until context is cancelled or an unrecoverable error occurs
	Start(ctx context.Context) error

	// Stop gracefully stops the coordinator, waiting for a running sync to return
	Stop() error
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	manager   pkgsync.Manager
	status    status.Persistence
	schedules []schedule

	// lastRun is only touched by the coordinator loop
	lastRun map[pkgsync.Mode]time.Time

	pollingInterval time.Duration
	now             func() time.Time

	// Lifecycle management
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithPollingInterval overrides the base interval between due checks
func WithPollingInterval(d time.Duration) Option {
	return func(c *defaultCoordinator) {
		if d > 0 {
			c.pollingInterval = d
		}
	}
}

// New creates a new coordinator with injected dependencies.
// persistence may be nil, in which case every mode is due at startup.
func New(
	manager pkgsync.Manager,
	persistence status.Persistence,
	cfg *config.Config,
	opts ...Option,
) Coordinator {
	c := &defaultCoordinator{
		manager:         manager,
		status:          persistence,
		schedules:       getSchedules(cfg),
		lastRun:         map[pkgsync.Mode]time.Time{},
		pollingInterval: basePollingInterval,
		now:             time.Now,
		done:            make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// calculatePollingInterval returns the base polling interval with a random jitter of ±25% applied.
func (c *defaultCoordinator) calculatePollingInterval() time.Duration {
	jitter := c.pollingInterval / 4
	if jitter <= 0 {
		return c.pollingInterval
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	jitterOffset := time.Duration(rand.Int64N(int64(2*jitter))) - jitter
	return c.pollingInterval + jitterOffset
}

// Start begins background sync coordination
func (c *defaultCoordinator) Start(ctx context.Context) error {
	if len(c.schedules) == 0 {
		close(c.done)
		return ErrNothingScheduled
	}
	for _, s := range c.schedules {
		slog.Info("Scheduled sync mode", "mode", s.mode, "interval", s.interval)
	}

	coordCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer func() {
		close(c.done)
		slog.Info("Background sync coordinator shutting down")
	}()

	c.loadLastRuns(coordCtx)

	ticker := time.NewTicker(c.calculatePollingInterval())
	defer ticker.Stop()

	c.processNextSyncJob(coordCtx)

	for {
		select {
		case <-ticker.C:
			c.processNextSyncJob(coordCtx)

			// Recalculate interval with new jitter for next iteration
			ticker.Reset(c.calculatePollingInterval())
		case <-coordCtx.Done():
			slog.Info("Sync coordinator stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	if c.cancelFunc != nil {
		slog.Info("Stopping sync coordinator")
		c.cancelFunc()
		// Wait for coordinator to finish
		<-c.done
	}
	return nil
}
