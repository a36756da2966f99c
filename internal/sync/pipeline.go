package sync

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/zoom-search-connector/internal/model"
	"github.com/stacklok/zoom-search-connector/internal/otel"
	"github.com/stacklok/zoom-search-connector/internal/status"
	"github.com/stacklok/zoom-search-connector/internal/sync/extract"
	"github.com/stacklok/zoom-search-connector/internal/sync/writer"
)

// windowGroup is a set of object types extracted over the same window.
type windowGroup struct {
	window model.Window
	types  []model.ObjectType
}

// groupWindows collects types sharing a window so they run through one pipeline.
func groupWindows(types []model.ObjectType, windowOf func(model.ObjectType) model.Window) []windowGroup {
	var groups []windowGroup
	for _, t := range model.SortObjectTypes(types) {
		w := windowOf(t)
		i := slices.IndexFunc(groups, func(g windowGroup) bool {
			return g.window.Since.Equal(w.Since) && g.window.Until.Equal(w.Until)
		})
		if i < 0 {
			groups = append(groups, windowGroup{window: w})
			i = len(groups) - 1
		}
		groups[i].types = append(groups[i].types, t)
	}
	return groups
}

// syncWindow runs incremental or full sync. Incremental windows start at each
// type's checkpoint; full windows use the configured bounds. Either way the
// checkpoints of all attempted types end at start.
func (m *defaultSyncManager) syncWindow(ctx context.Context, mode Mode, start time.Time, summary *status.RunSummary) *Error {
	var checkpoints map[model.ObjectType]time.Time
	if mode == ModeIncremental {
		cps, err := m.store.GetCheckpoints(ctx)
		if err != nil {
			return stateError(err, "Failed to read checkpoints", "")
		}
		checkpoints = cps
	}

	until := start
	if mode == ModeFull && !m.settings.EndTime.IsZero() {
		until = m.settings.EndTime.UTC()
	}
	groups := groupWindows(m.settings.Types, func(t model.ObjectType) model.Window {
		since := m.settings.StartTime
		if cp, ok := checkpoints[t]; ok {
			since = cp
		}
		return model.Window{Since: since.UTC(), Until: until}
	})
	setBounds(summary, groups)

	attempted := make([]model.ObjectType, 0, len(m.settings.Types))
	for _, g := range groups {
		slog.InfoContext(ctx, "Syncing object types",
			"object_types", g.types,
			"since", g.window.Since,
			"until", g.window.Until)

		indexed, err := m.runPipeline(ctx, g.types, g.window, summary, nil)
		if serr := m.recordIndexed(ctx, g.types, indexed); serr != nil && err == nil {
			err = serr
		}
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return newError(cerr, "Sync run interrupted", "")
		}
		attempted = append(attempted, g.types...)
	}

	// Checkpoints move together, to the run start, once every window has drained.
	if cerr := ctx.Err(); cerr != nil {
		return newError(cerr, "Sync run interrupted", "")
	}
	if serr := m.advanceCheckpoints(ctx, attempted, start); serr != nil {
		return serr
	}

	if mode == ModeIncremental && m.settings.Permissions {
		if m.mapper.Len() == 0 {
			slog.WarnContext(ctx, "Skipping permission sync pass: user mapping is empty")
			return nil
		}
		if err := m.syncPermissions(ctx, summary); err != nil {
			// Documents are indexed; a failed permission pass only degrades the run.
			slog.WarnContext(ctx, "Permission sync pass failed", "error", err)
			if summary.Permissions == nil {
				summary.Permissions = &status.PermissionSummary{}
			}
			summary.Permissions.Failed++
		}
	}
	return nil
}

func setBounds(summary *status.RunSummary, groups []windowGroup) {
	for i, g := range groups {
		since, until := g.window.Since, g.window.Until
		if i == 0 || since.Before(*summary.Since) {
			summary.Since = &since
		}
		if i == 0 || until.After(*summary.Until) {
			summary.Until = &until
		}
	}
}

// recordFilter sees every extracted record before indexing and reports whether
// it should be indexed.
type recordFilter func(model.SourceRecord) bool

// runPipeline extracts types over w into the bounded queue and indexes what comes
// out of it. It returns the entries the target accepted, also on error.
func (m *defaultSyncManager) runPipeline(
	ctx context.Context,
	types []model.ObjectType,
	w model.Window,
	summary *status.RunSummary,
	filter recordFilter,
) ([]model.IDEntry, *Error) {
	ctx, span := otel.StartStage(ctx, m.tracer, "sync.Pipeline", typeNames(types)...)
	indexed, err := m.pipeline(ctx, types, w, summary, filter)
	var spanErr error
	if err != nil {
		spanErr = err
	}
	otel.EndStage(span, len(indexed), spanErr)
	return indexed, err
}

func typeNames(types []model.ObjectType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}

func (m *defaultSyncManager) pipeline(
	ctx context.Context,
	types []model.ObjectType,
	w model.Window,
	summary *status.RunSummary,
	filter recordFilter,
) ([]model.IDEntry, *Error) {
	extractor := extract.NewPool(m.source, m.settings.ExtractWorkers)
	indexer := writer.NewPool(m.target, m.transformer.Transform, m.settings.Writer)

	queue := make(chan model.SourceRecord, max(m.settings.QueueSize, 1))
	in := queue
	var (
		extracted *extract.Result
		indexed   *writer.IndexResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := extractor.Run(gctx, types, w, queue)
		extracted = res
		return err
	})
	if filter != nil {
		filtered := make(chan model.SourceRecord)
		in = filtered
		g.Go(func() error {
			defer close(filtered)
			for r := range queue {
				if !filter(r) {
					continue
				}
				select {
				case filtered <- r:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		res, err := indexer.Index(gctx, in)
		indexed = res
		return err
	})
	err := g.Wait()

	mergeExtraction(summary, extracted)
	var entries []model.IDEntry
	if indexed != nil {
		mergeCounts(summary, indexed.Counts)
		entries = indexed.Indexed
	}
	if err != nil {
		return entries, pipelineError(err)
	}
	return entries, nil
}

// pipelineError attributes a pipeline failure. The first error wins in the
// errgroup, so the cause is usually the stage that failed first.
func pipelineError(err error) *Error {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr
	}
	return newError(err, "Sync pipeline stopped", "")
}

func mergeExtraction(summary *status.RunSummary, res *extract.Result) {
	if res == nil {
		return
	}
	for t, s := range res.Stats {
		ts := summary.TypeSummary(string(t))
		ts.Extracted += s.Emitted
		ts.FailedPages += s.FailedPages
		if s.Incomplete != nil {
			ts.Incomplete = true
			ts.LastError = s.Incomplete.Error()
		}
		if s.LastErr != nil {
			ts.LastError = s.LastErr.Error()
		}
	}
}

func mergeCounts(summary *status.RunSummary, counts map[model.ObjectType]*writer.Counts) {
	for t, c := range counts {
		ts := summary.TypeSummary(string(t))
		ts.Indexed += c.Indexed
		ts.Failed += c.Failed
		ts.Skipped += c.Skipped
		ts.Unresolved += c.Unresolved
		ts.Deleted += c.Deleted
	}
}

// recordIndexed adds accepted documents to the id-set snapshot, once per type.
// The write happens even when the run stopped so the snapshot never misses
// documents that exist in the target.
func (m *defaultSyncManager) recordIndexed(ctx context.Context, types []model.ObjectType, entries []model.IDEntry) *Error {
	if m.settings.DryRun || len(entries) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	byType := groupEntries(entries)
	for _, t := range types {
		if len(byType[t]) == 0 {
			continue
		}
		if err := m.store.AddToSnapshot(ctx, byType[t]); err != nil {
			return stateError(err, "Failed to record indexed documents", t)
		}
	}
	return nil
}

// advanceCheckpoints moves every attempted type to until, page failures or not.
func (m *defaultSyncManager) advanceCheckpoints(ctx context.Context, types []model.ObjectType, until time.Time) *Error {
	if m.settings.DryRun {
		return nil
	}
	for _, t := range types {
		if err := m.store.SaveCheckpoint(ctx, t, until); err != nil {
			return stateError(err, "Failed to save checkpoint", t)
		}
		slog.DebugContext(ctx, "Checkpoint advanced", "object_type", t, "synced_until", until)
	}
	return nil
}

func groupEntries(entries []model.IDEntry) map[model.ObjectType][]model.IDEntry {
	out := map[model.ObjectType][]model.IDEntry{}
	for _, e := range entries {
		out[e.Type] = append(out[e.Type], e)
	}
	return out
}
