package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/zoom-search-connector/internal/model"
	"github.com/stacklok/zoom-search-connector/internal/search"
	"github.com/stacklok/zoom-search-connector/internal/transform"
)

// IndexResult is the outcome of one indexing pass.
type IndexResult struct {
	Counts map[model.ObjectType]*Counts
	// Indexed lists the documents the target accepted.
	Indexed []model.IDEntry
}

func (r *IndexResult) counts(t model.ObjectType) *Counts {
	c, ok := r.Counts[t]
	if !ok {
		c = &Counts{}
		r.Counts[t] = c
	}
	return c
}

// Pool indexes documents on a bounded number of workers.
type Pool struct {
	target    Target
	transform func(model.SourceRecord) model.Document
	cfg       Config
}

// NewPool creates an indexer pool. transform shapes each record before batching.
func NewPool(target Target, transform func(model.SourceRecord) model.Document, cfg Config) *Pool {
	return &Pool{
		target:    target,
		transform: transform,
		cfg:       cfg.withDefaults(),
	}
}

type pending struct {
	doc     model.Document
	payload map[string]any
	size    int
}

type batch struct {
	items []pending
	bytes int
}

// Index consumes in until it is closed and upserts every record. Items the target
// rejects are retried individually and then dropped; only a whole-batch failure
// that every later batch would share ends the pass with ErrTargetUnavailable.
func (p *Pool) Index(ctx context.Context, in <-chan model.SourceRecord) (*IndexResult, error) {
	result := &IndexResult{Counts: map[model.ObjectType]*Counts{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for range p.cfg.Workers {
		g.Go(func() error {
			w := &indexWorker{pool: p, result: result, mu: &mu}
			return w.run(gctx, in)
		})
	}
	err := g.Wait()
	return result, err
}

type indexWorker struct {
	pool   *Pool
	result *IndexResult
	mu     *sync.Mutex
	batch  batch
}

func (w *indexWorker) run(ctx context.Context, in <-chan model.SourceRecord) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-in:
			if !ok {
				return w.flush(ctx)
			}
			if err := w.add(ctx, r); err != nil {
				return err
			}
		}
	}
}

func (w *indexWorker) add(ctx context.Context, r model.SourceRecord) error {
	doc := w.pool.transform(r)

	w.mu.Lock()
	c := w.result.counts(doc.ObjectType)
	c.Received++
	if doc.PermissionUnresolved {
		c.Unresolved++
		if w.pool.cfg.SkipUnresolved {
			c.Skipped++
			w.mu.Unlock()
			slog.DebugContext(ctx, "Skipping document without mapped owner", "object_type", doc.ObjectType, "id", doc.ID)
			return nil
		}
	}
	w.mu.Unlock()

	payload := transform.Render(doc)
	data, err := json.Marshal(payload)
	if err != nil {
		w.fail(ctx, []pending{{doc: doc}}, fmt.Errorf("failed to encode document: %w", err))
		return nil
	}
	item := pending{doc: doc, payload: payload, size: len(data)}

	if len(w.batch.items) > 0 && w.batch.bytes+item.size > w.pool.cfg.MaxBatchBytes {
		if err := w.flush(ctx); err != nil {
			return err
		}
	}
	w.batch.items = append(w.batch.items, item)
	w.batch.bytes += item.size
	if len(w.batch.items) >= w.pool.cfg.BatchSize {
		return w.flush(ctx)
	}
	return nil
}

func (w *indexWorker) flush(ctx context.Context) error {
	items := dedupe(w.batch.items)
	w.batch = batch{}
	if len(items) == 0 {
		return nil
	}

	results, err := w.pool.target.IndexDocuments(ctx, payloads(items))
	if err != nil {
		if fatal := classify(err); fatal != nil {
			return fatal
		}
		w.fail(ctx, items, err)
		return nil
	}

	accepted, rejected := match(ctx, items, results)
	w.succeed(accepted)

	for _, it := range rejected {
		if err := w.retry(ctx, it); err != nil {
			return err
		}
	}
	return nil
}

// retry resends one rejected item up to the retry budget.
func (w *indexWorker) retry(ctx context.Context, it pending) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.pool.cfg.RetryInterval
	b.Multiplier = 2
	b.Reset()

	lastErr := errRejected
	for attempt := 1; attempt <= w.pool.cfg.RetryCount; attempt++ {
		if err := sleep(ctx, b.NextBackOff()); err != nil {
			return err
		}
		results, err := w.pool.target.IndexDocuments(ctx, []map[string]any{it.payload})
		if err != nil {
			if fatal := classify(err); fatal != nil {
				return fatal
			}
			lastErr = err
			continue
		}
		if len(results) == 1 && results[0].OK() {
			w.succeed([]pending{it})
			return nil
		}
		if len(results) == 1 {
			lastErr = fmt.Errorf("rejected by target: %v", results[0].Errors)
		}
	}
	w.fail(ctx, []pending{it}, lastErr)
	return nil
}

func (w *indexWorker) succeed(items []pending) {
	if len(items) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, it := range items {
		w.result.counts(it.doc.ObjectType).Indexed++
		w.result.Indexed = append(w.result.Indexed, it.doc.Entry())
	}
}

func (w *indexWorker) fail(ctx context.Context, items []pending, err error) {
	w.mu.Lock()
	for _, it := range items {
		w.result.counts(it.doc.ObjectType).Failed++
	}
	w.mu.Unlock()
	for _, it := range items {
		slog.WarnContext(ctx, "Dropping document for this run",
			"object_type", it.doc.ObjectType,
			"id", it.doc.ID,
			"error", err)
	}
}

var errRejected = errors.New("rejected by target")

// match splits items into accepted and rejected by their bulk results.
func match(ctx context.Context, items []pending, results []search.ItemResult) (accepted, rejected []pending) {
	paired := pairResults(items, results)
	for i, it := range items {
		r := paired[i]
		if r != nil && r.OK() {
			accepted = append(accepted, it)
			continue
		}
		rejected = append(rejected, it)
		if r == nil {
			slog.DebugContext(ctx, "Document missing from bulk response", "id", it.doc.ID)
			continue
		}
		slog.DebugContext(ctx, "Document rejected", "id", it.doc.ID, "errors", r.Errors)
	}
	return accepted, rejected
}

// pairResults returns the result for each item, nil when there is none. Results
// come back in request order; when their count differs they are matched by id.
func pairResults(items []pending, results []search.ItemResult) []*search.ItemResult {
	out := make([]*search.ItemResult, len(items))
	if len(results) == len(items) {
		for i := range results {
			out[i] = &results[i]
		}
		return out
	}
	byID := make(map[string]*search.ItemResult, len(results))
	for i := range results {
		byID[results[i].ID] = &results[i]
	}
	for i, it := range items {
		out[i] = byID[it.doc.ID]
	}
	return out
}

// dedupe keeps the last version of each document id, in first-seen order.
func dedupe(items []pending) []pending {
	index := make(map[string]int, len(items))
	out := items[:0:0]
	for _, it := range items {
		key := string(it.doc.ObjectType) + "/" + it.doc.ID
		if i, ok := index[key]; ok {
			out[i] = it
			continue
		}
		index[key] = len(out)
		out = append(out, it)
	}
	return out
}

func payloads(items []pending) []map[string]any {
	out := make([]map[string]any, len(items))
	for i, it := range items {
		out[i] = it.payload
	}
	return out
}
