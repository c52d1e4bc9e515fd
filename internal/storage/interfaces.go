package storage

import (
	"context"

	"carbon-credit-exchange/internal/domain"
)

// RecordStore provides access to the carbon_credits table: one mutable
// off-chain document per token, keyed by mint. Records are never deleted;
// Archive hides them from default queries.
type RecordStore interface {
	// Get retrieves a record by mint. Returns ErrNotFound if not exists.
	Get(ctx context.Context, mint string) (*domain.OffChainRecord, error)

	// Put inserts or replaces the descriptive fields of a record. Views,
	// favorites and the creation time of an existing record are preserved.
	// Standard and project type are normalized when set.
	Put(ctx context.Context, r *domain.OffChainRecord) error

	// Create inserts a new record. Returns ErrDuplicateKey if mint exists.
	Create(ctx context.Context, r *domain.OffChainRecord) error

	// Query returns records matching filter, newest first.
	Query(ctx context.Context, filter domain.RecordFilter) ([]*domain.OffChainRecord, error)

	// IncrementViews bumps the view counter and returns the new value.
	IncrementViews(ctx context.Context, mint string) (int64, error)

	// AdjustFavorites adds delta to the favorites counter, floored at zero,
	// and returns the new value.
	AdjustFavorites(ctx context.Context, mint string, delta int64) (int64, error)

	// Archive soft-deletes a record.
	Archive(ctx context.Context, mint string) error

	// MarkListed sets the listing shadow flags.
	MarkListed(ctx context.Context, mint string, price uint64) error

	// MarkUnlisted clears the listing shadow flags after a cancel.
	MarkUnlisted(ctx context.Context, mint string) error

	// MarkSold transfers ownership and clears the listing shadow flags.
	MarkSold(ctx context.Context, mint, newOwner string) error

	// MarkRetired sets the retirement shadow flags and details.
	MarkRetired(ctx context.Context, mint string, details domain.RetirementDetails) error
}

// ActivityStore provides access to the marketplace_activity table.
// Events are keyed by EventID; re-inserting a known event is a no-op so
// overlapping sync triggers stay idempotent.
type ActivityStore interface {
	// InsertBulk adds events, skipping those whose EventID already exists.
	InsertBulk(ctx context.Context, events []*domain.ActivityEvent) error

	// GetByMint retrieves all events of a token, ordered by slot ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.ActivityEvent, error)

	// Recent returns the latest events across all tokens, newest first.
	Recent(ctx context.Context, limit int) ([]*domain.ActivityEvent, error)

	// SalesSummary aggregates SALE events with Timestamp >= since (Unix ms).
	SalesSummary(ctx context.Context, since int64) (*domain.SalesSummary, error)
}
