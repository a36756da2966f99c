package state

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/zoom-search-connector/internal/model"
)

// PostgresStore keeps state in the checkpoints and document_ids tables.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store on an existing pool. The schema is created by
// the migrate command.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// GetCheckpoints implements CheckpointStore
func (s *PostgresStore) GetCheckpoints(ctx context.Context) (Checkpoints, error) {
	rows, err := s.pool.Query(ctx, `SELECT object_type, synced_until FROM checkpoints`)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	cps := Checkpoints{}
	for rows.Next() {
		var t string
		var at time.Time
		if err := rows.Scan(&t, &at); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		cps[model.ObjectType(t)] = at.UTC()
	}
	return cps, rows.Err()
}

// SaveCheckpoint implements CheckpointStore
func (s *PostgresStore) SaveCheckpoint(ctx context.Context, t model.ObjectType, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO checkpoints (object_type, synced_until, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (object_type) DO UPDATE
		SET synced_until = EXCLUDED.synced_until, updated_at = EXCLUDED.updated_at`,
		string(t), at.UTC())
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for %s: %w", t, err)
	}
	return nil
}

// LoadSnapshot implements SnapshotStore
func (s *PostgresStore) LoadSnapshot(ctx context.Context, t model.ObjectType) ([]model.IDEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT document_id, parent_id, created_at
		FROM document_ids
		WHERE object_type = $1
		ORDER BY document_id`, string(t))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot of %s: %w", t, err)
	}
	defer rows.Close()

	var out []model.IDEntry
	for rows.Next() {
		e := model.IDEntry{Type: t}
		var createdAt *time.Time
		if err := rows.Scan(&e.ID, &e.ParentID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot entry: %w", err)
		}
		if createdAt != nil {
			e.CreatedAt = createdAt.UTC()
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AddToSnapshot implements SnapshotStore
func (s *PostgresStore) AddToSnapshot(ctx context.Context, entries []model.IDEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO document_ids (object_type, document_id, parent_id, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (object_type, document_id) DO UPDATE
			SET parent_id = EXCLUDED.parent_id, created_at = EXCLUDED.created_at`,
			string(e.Type), e.ID, e.ParentID, nullTime(e.CreatedAt))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to add snapshot entries: %w", err)
	}
	return nil
}

// ReplaceSnapshot implements SnapshotStore
func (s *PostgresStore) ReplaceSnapshot(ctx context.Context, t model.ObjectType, entries []model.IDEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM document_ids WHERE object_type = $1`, string(t)); err != nil {
		return fmt.Errorf("failed to clear snapshot of %s: %w", t, err)
	}

	entries = mergeEntries(nil, entries)
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{string(t), e.ID, e.ParentID, nullTime(e.CreatedAt)})
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"document_ids"},
		[]string{"object_type", "document_id", "parent_id", "created_at"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to write snapshot of %s: %w", t, err)
	}
	return tx.Commit(ctx)
}

// Close implements Store
func (s *PostgresStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
