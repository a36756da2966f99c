// Package writer implements the indexer pool: workers that batch documents into
// bulk upserts and deletes against the target, retrying rejected items one by one.
package writer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stacklok/zoom-search-connector/internal/httpclient"
	"github.com/stacklok/zoom-search-connector/internal/search"
)

// ErrTargetUnavailable is returned when the target rejects a whole batch for a
// reason that will affect every other batch too (unreachable, overloaded, or
// refusing the credentials).
var ErrTargetUnavailable = errors.New("target unavailable")

// Target receives documents.
//
//go:generate mockgen -destination=mocks/mock_target.go -package=mocks -source=writer.go Target
type Target interface {
	IndexDocuments(ctx context.Context, docs []map[string]any) ([]search.ItemResult, error)
	DeleteDocuments(ctx context.Context, ids []string) ([]search.ItemResult, error)
}

// Config sizes the pool.
type Config struct {
	Workers       int
	BatchSize     int
	MaxBatchBytes int
	// RetryCount bounds the individual retries of an item the target rejected.
	RetryCount    int
	RetryInterval time.Duration
	// SkipUnresolved drops documents whose owner has no identity mapping.
	SkipUnresolved bool
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxBatchBytes <= 0 {
		c.MaxBatchBytes = 10_000_000
	}
	if c.RetryCount < 0 {
		c.RetryCount = 0
	}
	return c
}

// Counts tallies the documents of one object type.
type Counts struct {
	Received   int
	Indexed    int
	Failed     int
	Skipped    int
	Unresolved int
	Deleted    int
}

// classify maps a whole-call failure to the run-level error it implies, or nil
// when only the items of that call are lost.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch httpclient.KindOf(err) {
	case httpclient.KindCanceled:
		return err
	case httpclient.KindTransient, httpclient.KindNetwork, httpclient.KindAuth, httpclient.KindAuthFatal:
		return fmt.Errorf("%w: %w", ErrTargetUnavailable, err)
	default:
		return nil
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
