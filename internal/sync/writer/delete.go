package writer

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/zoom-search-connector/internal/model"
)

// DeleteResult is the outcome of one delete pass.
type DeleteResult struct {
	Counts map[model.ObjectType]*Counts
	// Remaining lists the entries that could not be deleted and stay in the snapshot.
	Remaining []model.IDEntry
}

// Delete removes entries from the target in batches on the pool's workers.
func (p *Pool) Delete(ctx context.Context, entries []model.IDEntry) (*DeleteResult, error) {
	result := &DeleteResult{Counts: map[model.ObjectType]*Counts{}}
	var mu sync.Mutex
	count := func(t model.ObjectType) *Counts {
		c, ok := result.Counts[t]
		if !ok {
			c = &Counts{}
			result.Counts[t] = c
		}
		return c
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for start := 0; start < len(entries); start += p.cfg.BatchSize {
		chunk := entries[start:min(start+p.cfg.BatchSize, len(entries))]
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			deleted, remaining, err := p.deleteBatch(gctx, chunk)
			mu.Lock()
			defer mu.Unlock()
			for _, e := range deleted {
				count(e.Type).Deleted++
			}
			for _, e := range remaining {
				count(e.Type).Failed++
			}
			result.Remaining = append(result.Remaining, remaining...)
			return err
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return result, err
}

func (p *Pool) deleteBatch(ctx context.Context, chunk []model.IDEntry) (deleted, remaining []model.IDEntry, err error) {
	ids := make([]string, len(chunk))
	for i, e := range chunk {
		ids[i] = e.ID
	}

	results, err := p.target.DeleteDocuments(ctx, ids)
	if err != nil {
		if fatal := classify(err); fatal != nil {
			return nil, chunk, fatal
		}
		slog.WarnContext(ctx, "Delete batch rejected", "documents", len(chunk), "error", err)
		return nil, chunk, nil
	}

	ok := map[string]bool{}
	for _, r := range results {
		ok[r.ID] = r.OK()
	}
	for i, e := range chunk {
		if ok[e.ID] {
			deleted = append(deleted, e)
			continue
		}
		if p.retryDelete(ctx, e) {
			deleted = append(deleted, e)
			continue
		}
		if ctx.Err() != nil {
			return deleted, append(remaining, chunk[i:]...), ctx.Err()
		}
		remaining = append(remaining, e)
		slog.WarnContext(ctx, "Document not deleted", "object_type", e.Type, "id", e.ID)
	}
	return deleted, remaining, nil
}

func (p *Pool) retryDelete(ctx context.Context, e model.IDEntry) bool {
	for range p.cfg.RetryCount {
		if sleep(ctx, p.cfg.RetryInterval) != nil {
			return false
		}
		results, err := p.target.DeleteDocuments(ctx, []string{e.ID})
		if err == nil && len(results) == 1 && results[0].OK() {
			return true
		}
	}
	return false
}
