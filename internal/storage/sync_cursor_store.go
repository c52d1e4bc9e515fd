package storage

import "context"

// SyncCursor is the last processed position of one scan source.
type SyncCursor struct {
	Slot      int64  // last processed slot
	Signature string // last processed transaction signature
}

// SyncCursorStore persists sync progress so a restarted scanner resumes
// without reprocessing. Keys come from idhash.ComputeCursorKey.
type SyncCursorStore interface {
	// GetCursor returns the cursor of key.
	// Returns ErrNotFound if no progress has been saved yet.
	GetCursor(ctx context.Context, key string) (*SyncCursor, error)

	// SetCursor saves the cursor of key.
	SetCursor(ctx context.Context, key string, cursor *SyncCursor) error
}
