package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/stacklok/zoom-search-connector/internal/model"
)

const (
	checkpointsFile = "checkpoints.json"
	snapshotFile    = "document_ids.json"
	lockFile        = ".state.lock"
)

// FileStore keeps state as JSON documents in one directory. Writes go through a
// temporary file and a rename; a file lock serializes processes sharing the directory.
type FileStore struct {
	dir string
	// mu serializes goroutines; the file lock alone is per process.
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFileStore creates a store rooted at dir, creating the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, lockFile)),
	}, nil
}

// GetCheckpoints implements CheckpointStore
func (s *FileStore) GetCheckpoints(ctx context.Context) (Checkpoints, error) {
	if err := s.rlock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()

	cps := Checkpoints{}
	if err := s.read(checkpointsFile, &cps); err != nil {
		return nil, err
	}
	return cps, nil
}

// SaveCheckpoint implements CheckpointStore
func (s *FileStore) SaveCheckpoint(ctx context.Context, t model.ObjectType, at time.Time) error {
	if err := s.wlock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	cps := Checkpoints{}
	if err := s.read(checkpointsFile, &cps); err != nil {
		return err
	}
	cps[t] = at.UTC()
	return s.write(checkpointsFile, cps)
}

// LoadSnapshot implements SnapshotStore
func (s *FileStore) LoadSnapshot(ctx context.Context, t model.ObjectType) ([]model.IDEntry, error) {
	if err := s.rlock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()

	snap := map[model.ObjectType][]model.IDEntry{}
	if err := s.read(snapshotFile, &snap); err != nil {
		return nil, err
	}
	return snap[t], nil
}

// AddToSnapshot implements SnapshotStore
func (s *FileStore) AddToSnapshot(ctx context.Context, entries []model.IDEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.updateSnapshot(ctx, func(snap map[model.ObjectType][]model.IDEntry) {
		byType := map[model.ObjectType][]model.IDEntry{}
		for _, e := range entries {
			byType[e.Type] = append(byType[e.Type], e)
		}
		for t, add := range byType {
			snap[t] = mergeEntries(snap[t], add)
		}
	})
}

// ReplaceSnapshot implements SnapshotStore
func (s *FileStore) ReplaceSnapshot(ctx context.Context, t model.ObjectType, entries []model.IDEntry) error {
	return s.updateSnapshot(ctx, func(snap map[model.ObjectType][]model.IDEntry) {
		if len(entries) == 0 {
			delete(snap, t)
			return
		}
		snap[t] = mergeEntries(nil, entries)
	})
}

// Close implements Store
func (*FileStore) Close(context.Context) error {
	return nil
}

func (s *FileStore) updateSnapshot(ctx context.Context, fn func(map[model.ObjectType][]model.IDEntry)) error {
	if err := s.wlock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	snap := map[model.ObjectType][]model.IDEntry{}
	if err := s.read(snapshotFile, &snap); err != nil {
		return err
	}
	fn(snap)
	return s.write(snapshotFile, snap)
}

func (s *FileStore) rlock(ctx context.Context) error {
	s.mu.Lock()
	if _, err := s.lock.TryRLockContext(ctx, 50*time.Millisecond); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to lock state directory: %w", err)
	}
	return nil
}

func (s *FileStore) wlock(ctx context.Context) error {
	s.mu.Lock()
	if _, err := s.lock.TryLockContext(ctx, 50*time.Millisecond); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to lock state directory: %w", err)
	}
	return nil
}

func (s *FileStore) unlock() {
	_ = s.lock.Unlock()
	s.mu.Unlock()
}

// read decodes name into v. A missing file leaves v untouched.
func (s *FileStore) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
