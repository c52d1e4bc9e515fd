package postgres

import (
	"context"
	"fmt"
	"time"

	"carbon-credit-exchange/internal/storage"
)

// SyncCursorStore is a PostgreSQL implementation of storage.SyncCursorStore
// backed by the sync_cursors table, one row per scan source.
type SyncCursorStore struct {
	pool *Pool
}

// NewSyncCursorStore creates a new PostgreSQL cursor store.
func NewSyncCursorStore(pool *Pool) *SyncCursorStore {
	return &SyncCursorStore{pool: pool}
}

var _ storage.SyncCursorStore = (*SyncCursorStore)(nil)

// GetCursor returns the cursor of key.
func (s *SyncCursorStore) GetCursor(ctx context.Context, key string) (c *storage.SyncCursor, err error) {
	defer timed("cursor_get", time.Now(), &err)

	var cursor storage.SyncCursor
	err = s.pool.QueryRow(ctx, `
		SELECT slot, signature
		FROM sync_cursors
		WHERE cursor_key = $1
	`, key).Scan(&cursor.Slot, &cursor.Signature)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get cursor %s: %w", key, err)
	}
	return &cursor, nil
}

// SetCursor saves the cursor of key.
func (s *SyncCursorStore) SetCursor(ctx context.Context, key string, cursor *storage.SyncCursor) (err error) {
	defer timed("cursor_set", time.Now(), &err)

	if key == "" || cursor == nil {
		return storage.ErrInvalidInput
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO sync_cursors (cursor_key, slot, signature, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (cursor_key) DO UPDATE
		SET slot = EXCLUDED.slot,
		    signature = EXCLUDED.signature,
		    updated_at = NOW()
	`, key, cursor.Slot, cursor.Signature)
	if err != nil {
		return fmt.Errorf("set cursor %s: %w", key, err)
	}
	return nil
}
