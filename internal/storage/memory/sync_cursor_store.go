package memory

import (
	"context"
	"sync"

	"carbon-credit-exchange/internal/storage"
)

// SyncCursorStore is an in-memory implementation of storage.SyncCursorStore.
type SyncCursorStore struct {
	mu      sync.RWMutex
	cursors map[string]storage.SyncCursor
}

// NewSyncCursorStore creates a new in-memory cursor store.
func NewSyncCursorStore() *SyncCursorStore {
	return &SyncCursorStore{cursors: make(map[string]storage.SyncCursor)}
}

var _ storage.SyncCursorStore = (*SyncCursorStore)(nil)

// GetCursor returns the cursor of key.
func (s *SyncCursorStore) GetCursor(_ context.Context, key string) (*storage.SyncCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.cursors[key]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

// SetCursor saves the cursor of key.
func (s *SyncCursorStore) SetCursor(_ context.Context, key string, cursor *storage.SyncCursor) error {
	if key == "" || cursor == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[key] = *cursor
	return nil
}
