package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/zoom-search-connector/internal/httpclient"
	"github.com/stacklok/zoom-search-connector/internal/model"
	"github.com/stacklok/zoom-search-connector/internal/zoom"
)

// Prober checks whether a source object still exists
type Prober interface {
	Probe(ctx context.Context, entry model.IDEntry) (bool, error)
}

// verdict is the decision taken for one deletion candidate
type verdict int

const (
	verdictKeep verdict = iota
	verdictDelete
	verdictArchived
)

// Detection sorts the candidates of one object type
type Detection struct {
	// Delete lists objects confirmed gone from the source.
	Delete []model.IDEntry
	// Keep lists candidates that may still exist; they stay in the snapshot.
	Keep []model.IDEntry
	// Archived lists candidates past the source's retention. They are neither
	// deleted nor kept.
	Archived []model.IDEntry
}

// DeletionDetector decides which previously indexed objects were deleted at the source
type DeletionDetector struct {
	prober  Prober
	workers int
	now     func() time.Time
}

// NewDeletionDetector creates a detector probing on up to workers goroutines
func NewDeletionDetector(prober Prober, workers int) *DeletionDetector {
	return &DeletionDetector{
		prober:  prober,
		workers: max(workers, 1),
		now:     time.Now,
	}
}

// Diff returns the entries of prior whose id does not appear in current.
// It has no side effects.
func Diff(prior, current []model.IDEntry) []model.IDEntry {
	seen := make(map[string]struct{}, len(current))
	for _, e := range current {
		seen[e.ID] = struct{}{}
	}
	var out []model.IDEntry
	for _, e := range prior {
		if _, ok := seen[e.ID]; !ok {
			out = append(out, e)
		}
	}
	return out
}

// Detect probes every candidate. complete tells whether the enumeration that
// produced the diff saw every page; when it did not, a candidate that cannot be
// probed is kept, because its absence may only mean its page was lost.
//
// A probe error that is neither fatal nor a cancellation keeps the candidate.
func (d *DeletionDetector) Detect(ctx context.Context, candidates []model.IDEntry, complete bool) (*Detection, error) {
	now := d.now()
	verdicts := make([]verdict, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, e := range candidates {
		if e.Archived(now) {
			verdicts[i] = verdictArchived
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			v, err := d.judge(gctx, e, complete)
			verdicts[i] = v
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Detection{}
	for i, e := range candidates {
		switch verdicts[i] {
		case verdictDelete:
			out.Delete = append(out.Delete, e)
		case verdictArchived:
			out.Archived = append(out.Archived, e)
		default:
			out.Keep = append(out.Keep, e)
		}
	}
	return out, nil
}

func (d *DeletionDetector) judge(ctx context.Context, e model.IDEntry, complete bool) (verdict, error) {
	exists, err := d.prober.Probe(ctx, e)
	switch {
	case err == nil && exists:
		return verdictKeep, nil
	case err == nil:
		return verdictDelete, nil
	case errors.Is(err, zoom.ErrProbeUnsupported):
		if complete {
			return verdictDelete, nil
		}
		return verdictKeep, nil
	case ctx.Err() != nil, httpclient.IsFatal(err), httpclient.KindOf(err) == httpclient.KindCanceled:
		return verdictKeep, err
	default:
		slog.WarnContext(ctx, "Keeping deletion candidate after failed probe",
			"object_type", e.Type, "id", e.ID, "error", err)
		return verdictKeep, nil
	}
}
