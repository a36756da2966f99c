package state

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/zoom-search-connector/internal/model"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "state")
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestFileStoreCheckpoints(t *testing.T) {
	t.Parallel()

	store, dir := newTestFileStore(t)
	ctx := context.Background()

	cps, err := store.GetCheckpoints(ctx)
	require.NoError(t, err)
	assert.Empty(t, cps)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveCheckpoint(ctx, model.Users, at))
	require.NoError(t, store.SaveCheckpoint(ctx, model.Meetings, at.Add(-time.Hour)))
	require.NoError(t, store.SaveCheckpoint(ctx, model.Users, at.Add(time.Hour)))

	cps, err = store.GetCheckpoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, Checkpoints{
		model.Users:    at.Add(time.Hour),
		model.Meetings: at.Add(-time.Hour),
	}, cps)

	info, err := os.Stat(filepath.Join(dir, checkpointsFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStoreSnapshot(t *testing.T) {
	t.Parallel()

	store, _ := newTestFileStore(t)
	ctx := context.Background()
	created := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	entries, err := store.LoadSnapshot(ctx, model.Meetings)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, store.AddToSnapshot(ctx, []model.IDEntry{
		{ID: "1", Type: model.Meetings, ParentID: "u1", CreatedAt: created},
		{ID: "2", Type: model.Meetings, ParentID: "u1", CreatedAt: created},
		{ID: "u1", Type: model.Users},
	}))
	// Re-adding an id replaces it in place.
	require.NoError(t, store.AddToSnapshot(ctx, []model.IDEntry{
		{ID: "1", Type: model.Meetings, ParentID: "u2", CreatedAt: created},
		{ID: "3", Type: model.Meetings, ParentID: "u2"},
	}))

	entries, err = store.LoadSnapshot(ctx, model.Meetings)
	require.NoError(t, err)
	assert.Equal(t, []model.IDEntry{
		{ID: "1", Type: model.Meetings, ParentID: "u2", CreatedAt: created},
		{ID: "2", Type: model.Meetings, ParentID: "u1", CreatedAt: created},
		{ID: "3", Type: model.Meetings, ParentID: "u2"},
	}, entries)

	users, err := store.LoadSnapshot(ctx, model.Users)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, store.ReplaceSnapshot(ctx, model.Meetings, []model.IDEntry{
		{ID: "2", Type: model.Meetings, ParentID: "u1", CreatedAt: created},
	}))
	entries, err = store.LoadSnapshot(ctx, model.Meetings)
	require.NoError(t, err)
	assert.Equal(t, []model.IDEntry{{ID: "2", Type: model.Meetings, ParentID: "u1", CreatedAt: created}}, entries)

	require.NoError(t, store.ReplaceSnapshot(ctx, model.Meetings, nil))
	entries, err = store.LoadSnapshot(ctx, model.Meetings)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Other types are untouched by a replace.
	users, err = store.LoadSnapshot(ctx, model.Users)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestFileStoreSharedDirectory(t *testing.T) {
	t.Parallel()

	first, dir := newTestFileStore(t)
	second, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, first.SaveCheckpoint(ctx, model.Groups, at))

	cps, err := second.GetCheckpoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, at, cps[model.Groups])
}

func TestFileStoreConcurrentAdds(t *testing.T) {
	t.Parallel()

	store, _ := newTestFileStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.AddToSnapshot(ctx, []model.IDEntry{
				{ID: string(rune('a' + i)), Type: model.Channels},
			}))
		}(i)
	}
	wg.Wait()

	entries, err := store.LoadSnapshot(ctx, model.Channels)
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestFileStoreCorruptFile(t *testing.T) {
	t.Parallel()

	store, dir := newTestFileStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, checkpointsFile), []byte("{not json"), 0600))

	_, err := store.GetCheckpoints(context.Background())
	assert.Error(t, err)
}

func TestFileStoreCancelledContext(t *testing.T) {
	t.Parallel()

	store, _ := newTestFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.GetCheckpoints(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// Nothing is left locked.
	_, err = store.GetCheckpoints(context.Background())
	assert.NoError(t, err)
}

func TestMergeEntries(t *testing.T) {
	t.Parallel()

	base := []model.IDEntry{{ID: "1", Type: model.Users}, {ID: "1", Type: model.Groups}}
	add := []model.IDEntry{{ID: "1", Type: model.Users, ParentID: "x"}, {ID: "2", Type: model.Users}}

	got := mergeEntries(base, add)
	assert.Equal(t, []model.IDEntry{
		{ID: "1", Type: model.Users, ParentID: "x"},
		{ID: "1", Type: model.Groups},
		{ID: "2", Type: model.Users},
	}, got)
	assert.Equal(t, "", base[0].ParentID)
}
