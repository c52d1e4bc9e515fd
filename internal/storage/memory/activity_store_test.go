package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/storage"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestActivityStore_InsertIsIdempotent(t *testing.T) {
	store := NewActivityStore()
	ctx := context.Background()

	events := []*domain.ActivityEvent{
		{EventID: "e1", Kind: domain.ActivityList, Mint: "mint1", Actor: "alice", Price: 10, Slot: 5},
		{EventID: "e2", Kind: domain.ActivitySale, Mint: "mint1", Actor: "alice", Counterparty: "bob", Price: 10, Slot: 7},
	}
	if err := store.InsertBulk(ctx, events); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	if err := store.InsertBulk(ctx, events[:1]); err != nil {
		t.Fatalf("re-insert failed: %v", err)
	}

	got, _ := store.GetByMint(ctx, "mint1")
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].EventID != "e1" || got[1].EventID != "e2" {
		t.Errorf("events not in slot order: %s, %s", got[0].EventID, got[1].EventID)
	}
}

func TestActivityStore_InsertRejectsInvalid(t *testing.T) {
	store := NewActivityStore()

	err := store.InsertBulk(context.Background(), []*domain.ActivityEvent{{Mint: "mint1"}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestActivityStore_RecentAndSummary(t *testing.T) {
	store := NewActivityStore()
	ctx := context.Background()

	_ = store.InsertBulk(ctx, []*domain.ActivityEvent{
		{EventID: "e1", Kind: domain.ActivitySale, Mint: "m1", Counterparty: "bob", Price: 1_000_000_000, Slot: 1, Timestamp: 1000},
		{EventID: "e2", Kind: domain.ActivitySale, Mint: "m2", Counterparty: "carol", Price: 3_000_000_000, Slot: 2, Timestamp: 2000},
		{EventID: "e3", Kind: domain.ActivityRetire, Mint: "m1", Slot: 3, Timestamp: 3000},
	})

	recent, _ := store.Recent(ctx, 2)
	if len(recent) != 2 || recent[0].EventID != "e3" || recent[1].EventID != "e2" {
		t.Errorf("unexpected recent events: %+v", recent)
	}

	summary, err := store.SalesSummary(ctx, 1500)
	if err != nil {
		t.Fatalf("SalesSummary failed: %v", err)
	}
	if summary.Sales != 1 || summary.VolumeSOL != 3 || summary.UniqueBuyers != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestSyncCursorStore(t *testing.T) {
	store := NewSyncCursorStore()
	ctx := context.Background()

	if _, err := store.GetCursor(ctx, "k"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetCursor(ctx, "k", nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	_ = store.SetCursor(ctx, "k", &storage.SyncCursor{Slot: 10, Signature: "sig1"})
	_ = store.SetCursor(ctx, "k", &storage.SyncCursor{Slot: 12, Signature: "sig2"})

	c, err := store.GetCursor(ctx, "k")
	if err != nil {
		t.Fatalf("GetCursor failed: %v", err)
	}
	if c.Slot != 12 || c.Signature != "sig2" {
		t.Errorf("unexpected cursor: %+v", c)
	}
}
