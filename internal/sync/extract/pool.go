// Package extract implements the extractor pool: a bounded set of workers walking
// source work units and feeding records onto a bounded hand-off queue.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/zoom-search-connector/internal/model"
	"github.com/stacklok/zoom-search-connector/internal/zoom"
)

// Source enumerates source objects.
//
//go:generate mockgen -destination=mocks/mock_source.go -package=mocks -source=pool.go Source
type Source interface {
	Plan(ctx context.Context, types []model.ObjectType, w model.Window) (*zoom.Plan, error)
	Walk(ctx context.Context, unit model.Unit, emit func(model.SourceRecord) error) (zoom.WalkStats, error)
}

// TypeStats counts the extraction work done for one object type.
type TypeStats struct {
	Units       int
	Pages       int
	FailedPages int
	// Listed counts records returned by the source; Emitted those inside the window.
	Listed  int
	Emitted int
	// Incomplete is set when the enumeration of the type is known to be partial.
	Incomplete error
	LastErr    error
}

// Failed reports whether any page of the type was lost.
func (s *TypeStats) Failed() bool {
	return s.FailedPages > 0 || s.Incomplete != nil
}

// Result is the outcome of one extraction.
type Result struct {
	Stats map[model.ObjectType]*TypeStats
}

// Pool runs extraction units on a bounded number of workers.
type Pool struct {
	source  Source
	workers int
}

// NewPool creates a pool of workers goroutines. A non-positive count uses one worker.
func NewPool(source Source, workers int) *Pool {
	return &Pool{source: source, workers: max(workers, 1)}
}

// Run enumerates types over w and sends every in-window record to out. out is
// closed when Run returns, which tells consumers that no more records follow.
//
// Page failures are contained in the per-type stats. The returned error is set
// only when extraction cannot go on: planning failed, a credential became
// invalid, or ctx was cancelled.
func (p *Pool) Run(ctx context.Context, types []model.ObjectType, w model.Window, out chan<- model.SourceRecord) (*Result, error) {
	defer close(out)

	result := &Result{Stats: make(map[model.ObjectType]*TypeStats, len(types))}
	for _, t := range types {
		result.Stats[t] = &TypeStats{}
	}

	plan, err := p.source.Plan(ctx, types, w)
	if err != nil {
		return result, fmt.Errorf("failed to plan extraction: %w", err)
	}
	for t, reason := range plan.Incomplete {
		if s, ok := result.Stats[t]; ok {
			s.Incomplete = reason
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, unit := range Interleave(plan.Units) {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			var listed, emitted int
			stats, err := p.source.Walk(gctx, unit, func(r model.SourceRecord) error {
				listed++
				if !r.InWindow(unit.Window.Since, unit.Window.Until) {
					return nil
				}
				select {
				case out <- r:
					emitted++
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})

			mu.Lock()
			s := result.Stats[unit.Type]
			s.Units++
			s.Pages += stats.Pages
			s.FailedPages += stats.FailedPages
			s.Listed += listed
			s.Emitted += emitted
			if stats.LastErr != nil {
				s.LastErr = stats.LastErr
			}
			mu.Unlock()

			if stats.FailedPages > 0 {
				slog.WarnContext(gctx, "Unit completed with skipped pages",
					"unit", unit.String(),
					"failed_pages", stats.FailedPages,
					"error", stats.LastErr)
			}
			if err != nil {
				return fmt.Errorf("extraction of %s stopped: %w", unit, err)
			}
			return nil
		})
	}

	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return result, err
}

// Interleave orders units round-robin across object types so that one type with
// many units cannot hold every worker while other types wait.
func Interleave(units []model.Unit) []model.Unit {
	var order []model.ObjectType
	byType := map[model.ObjectType][]model.Unit{}
	for _, u := range units {
		if _, ok := byType[u.Type]; !ok {
			order = append(order, u.Type)
		}
		byType[u.Type] = append(byType[u.Type], u)
	}

	out := make([]model.Unit, 0, len(units))
	for i := 0; len(out) < len(units); i++ {
		for _, t := range order {
			if i < len(byType[t]) {
				out = append(out, byType[t][i])
			}
		}
	}
	return out
}
