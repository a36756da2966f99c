package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/stacklok/zoom-search-connector/internal/model"
	"github.com/stacklok/zoom-search-connector/internal/otel"
	"github.com/stacklok/zoom-search-connector/internal/status"
	"github.com/stacklok/zoom-search-connector/internal/sync/writer"
)

// syncDeletions re-enumerates every object type and deletes the indexed
// documents that no longer exist at the source. Enumerated records missing from
// the snapshot are upserted on the way, so the new snapshot matches the target.
func (m *defaultSyncManager) syncDeletions(ctx context.Context, start time.Time, summary *status.RunSummary) *Error {
	types := model.SortObjectTypes(m.settings.Types)

	prior := make(map[model.ObjectType][]model.IDEntry, len(types))
	known := make(map[model.ObjectType]map[string]struct{}, len(types))
	for _, t := range types {
		entries, err := m.store.LoadSnapshot(ctx, t)
		if err != nil {
			return stateError(err, "Failed to load snapshot", t)
		}
		prior[t] = entries
		ids := make(map[string]struct{}, len(entries))
		for _, e := range entries {
			ids[e.ID] = struct{}{}
		}
		known[t] = ids
		summary.TypeSummary(string(t))
	}

	// Only the filter goroutine touches current.
	current := make(map[model.ObjectType][]model.IDEntry, len(types))
	filter := func(r model.SourceRecord) bool {
		current[r.ObjectType] = append(current[r.ObjectType], entryOf(r))
		_, ok := known[r.ObjectType][r.ID]
		return !ok
	}

	w := model.Window{Until: start}
	summary.Until = &start
	indexed, err := m.runPipeline(ctx, types, w, summary, filter)
	if err != nil {
		_ = m.recordIndexed(ctx, types, indexed)
		return err
	}

	detector := NewDeletionDetector(m.source, m.settings.ExtractWorkers)
	detector.now = m.now
	kept := map[model.ObjectType][]model.IDEntry{}
	var doomed []model.IDEntry
	for _, t := range types {
		ts := summary.TypeSummary(string(t))
		complete := ts.FailedPages == 0 && !ts.Incomplete

		candidates := Diff(prior[t], current[t])
		if len(candidates) == 0 {
			continue
		}
		dctx, span := otel.StartStage(ctx, m.tracer, "sync.DetectDeletions", string(t))
		detection, derr := detector.Detect(dctx, candidates, complete)
		deleteCount := 0
		if detection != nil {
			deleteCount = len(detection.Delete)
		}
		otel.EndStage(span, deleteCount, derr)
		if derr != nil {
			_ = m.recordIndexed(ctx, types, indexed)
			return newError(derr, "Deletion detection stopped", t)
		}
		slog.InfoContext(ctx, "Deletion candidates classified",
			"object_type", t,
			"candidates", len(candidates),
			"delete", len(detection.Delete),
			"keep", len(detection.Keep),
			"archived", len(detection.Archived),
			"complete", complete)
		kept[t] = detection.Keep
		doomed = append(doomed, detection.Delete...)
	}

	var remaining []model.IDEntry
	if len(doomed) > 0 {
		deleter := writer.NewPool(m.target, m.transformer.Transform, m.settings.Writer)
		res, derr := deleter.Delete(ctx, doomed)
		if res != nil {
			mergeCounts(summary, res.Counts)
			remaining = res.Remaining
		}
		if derr != nil {
			_ = m.recordIndexed(ctx, types, indexed)
			return newError(derr, "Failed to delete documents", "")
		}
	}
	if err := ctx.Err(); err != nil {
		_ = m.recordIndexed(ctx, types, indexed)
		return newError(err, "Deletion sync interrupted", "")
	}
	if m.settings.DryRun {
		return nil
	}

	added := groupEntries(indexed)
	left := groupEntries(remaining)
	for _, t := range types {
		snapshot := nextSnapshot(known[t], current[t], added[t], kept[t], left[t])
		if err := m.store.ReplaceSnapshot(ctx, t, snapshot); err != nil {
			return stateError(err, "Failed to replace snapshot", t)
		}
	}
	return nil
}

// nextSnapshot is what the target holds after the run: enumerated entries that
// were already indexed, newly indexed entries, and candidates that were kept or
// could not be deleted.
func nextSnapshot(known map[string]struct{}, current, added, kept, remaining []model.IDEntry) []model.IDEntry {
	seen := map[string]struct{}{}
	var out []model.IDEntry
	push := func(e model.IDEntry) {
		if _, ok := seen[e.ID]; ok {
			return
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	for _, e := range current {
		if _, ok := known[e.ID]; ok {
			push(e)
		}
	}
	for _, list := range [][]model.IDEntry{added, kept, remaining} {
		for _, e := range list {
			push(e)
		}
	}
	if out == nil {
		out = []model.IDEntry{}
	}
	return out
}

func entryOf(r model.SourceRecord) model.IDEntry {
	return model.IDEntry{
		ID:        r.ID,
		Type:      r.ObjectType,
		ParentID:  r.ParentID,
		CreatedAt: r.CreatedAt,
	}
}
