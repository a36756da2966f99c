// Package state persists what survives between runs: per-type checkpoints and the
// id-set snapshot used by deletion sync.
package state

import (
	"context"
	"time"

	"github.com/stacklok/zoom-search-connector/internal/model"
)

// Checkpoints maps an object type to the instant up to which it is known synced.
type Checkpoints map[model.ObjectType]time.Time

// CheckpointStore reads and advances per-type checkpoints.
//
//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go CheckpointStore,SnapshotStore,Store
type CheckpointStore interface {
	// GetCheckpoints returns every stored checkpoint. Types never synced are absent.
	GetCheckpoints(ctx context.Context) (Checkpoints, error)
	// SaveCheckpoint overwrites the checkpoint of one type.
	SaveCheckpoint(ctx context.Context, t model.ObjectType, at time.Time) error
}

// SnapshotStore keeps the ids known to be indexed, per object type.
type SnapshotStore interface {
	// LoadSnapshot returns the entries recorded for t.
	LoadSnapshot(ctx context.Context, t model.ObjectType) ([]model.IDEntry, error)
	// AddToSnapshot upserts entries, keyed by type and id.
	AddToSnapshot(ctx context.Context, entries []model.IDEntry) error
	// ReplaceSnapshot replaces every entry of t with entries.
	ReplaceSnapshot(ctx context.Context, t model.ObjectType, entries []model.IDEntry) error
}

// Store is a storage backend holding both kinds of state.
type Store interface {
	CheckpointStore
	SnapshotStore
	// Close releases the backend's connections.
	Close(ctx context.Context) error
}

// mergeEntries upserts add into base by type and id, preserving first-seen order.
func mergeEntries(base, add []model.IDEntry) []model.IDEntry {
	type key struct {
		t  model.ObjectType
		id string
	}
	index := make(map[key]int, len(base)+len(add))
	out := make([]model.IDEntry, 0, len(base)+len(add))
	for _, list := range [][]model.IDEntry{base, add} {
		for _, e := range list {
			k := key{e.Type, e.ID}
			if i, ok := index[k]; ok {
				out[i] = e
				continue
			}
			index[k] = len(out)
			out = append(out, e)
		}
	}
	return out
}
