package memory

import (
	"context"
	"errors"
	"testing"

	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/storage"
)

func testRecord(mint, owner string) *domain.OffChainRecord {
	return &domain.OffChainRecord{
		Mint:         mint,
		Owner:        owner,
		ProjectName:  "Amazon Reforestation",
		Location:     domain.Location{Country: "Brazil", Region: "Para"},
		VintageYear:  2023,
		CarbonAmount: 100,
		Standard:     "verra",
		ProjectType:  "forestry",
		Metadata: domain.MetadataSnapshot{
			Name:       "Amazon Reforestation",
			Attributes: []domain.Attribute{{TraitType: "Project Type", Value: "Forestry"}},
		},
	}
}

func TestRecordStore_PutAndGet(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	if err := store.Put(ctx, testRecord("mint1", "alice")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	r, err := store.Get(ctx, "mint1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if r.Standard != domain.StandardVerra {
		t.Errorf("Standard not normalized: got %q", r.Standard)
	}
	if r.ProjectType != domain.ProjectForestry {
		t.Errorf("ProjectType not normalized: got %q", r.ProjectType)
	}
	if r.Status != domain.StatusActive {
		t.Errorf("Status: got %q, want Active", r.Status)
	}
	if r.CreatedAt == 0 || r.UpdatedAt == 0 {
		t.Error("timestamps not set")
	}

	// Returned records are copies.
	r.Metadata.Attributes[0].Value = "changed"
	again, _ := store.Get(ctx, "mint1")
	if again.Metadata.Attributes[0].Value != "Forestry" {
		t.Error("store shares attribute slice with caller")
	}
}

func TestRecordStore_GetNotFound(t *testing.T) {
	store := NewRecordStore()

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordStore_PutPreservesCounters(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	_ = store.Put(ctx, testRecord("mint1", "alice"))
	first, _ := store.Get(ctx, "mint1")
	_, _ = store.IncrementViews(ctx, "mint1")
	_, _ = store.AdjustFavorites(ctx, "mint1", 2)

	edited := testRecord("mint1", "alice")
	edited.ProjectName = "Renamed"
	if err := store.Put(ctx, edited); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	r, _ := store.Get(ctx, "mint1")
	if r.ProjectName != "Renamed" {
		t.Errorf("ProjectName: got %q", r.ProjectName)
	}
	if r.Views != 1 || r.Favorites != 2 {
		t.Errorf("counters reset: views=%d favorites=%d", r.Views, r.Favorites)
	}
	if r.CreatedAt != first.CreatedAt {
		t.Error("CreatedAt changed on update")
	}
}

func TestRecordStore_CreateDuplicate(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	if err := store.Create(ctx, testRecord("mint1", "alice")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err := store.Create(ctx, testRecord("mint1", "bob"))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestRecordStore_InvalidInput(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	if err := store.Put(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Put(nil): expected ErrInvalidInput, got %v", err)
	}
	if err := store.Create(ctx, &domain.OffChainRecord{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Create(empty mint): expected ErrInvalidInput, got %v", err)
	}
	if err := store.MarkSold(ctx, "mint1", ""); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("MarkSold(empty owner): expected ErrInvalidInput, got %v", err)
	}
}

func TestRecordStore_ShadowFlags(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()
	_ = store.Put(ctx, testRecord("mint1", "alice"))

	if err := store.MarkListed(ctx, "mint1", 2_500_000_000); err != nil {
		t.Fatalf("MarkListed failed: %v", err)
	}
	r, _ := store.Get(ctx, "mint1")
	if !r.IsListed || r.ListingPrice == nil || *r.ListingPrice != 2_500_000_000 || r.Status != domain.StatusListed {
		t.Errorf("after MarkListed: %+v", r)
	}

	if err := store.MarkSold(ctx, "mint1", "bob"); err != nil {
		t.Fatalf("MarkSold failed: %v", err)
	}
	r, _ = store.Get(ctx, "mint1")
	if r.IsListed || r.ListingPrice != nil || r.Owner != "bob" || r.Status != domain.StatusActive {
		t.Errorf("after MarkSold: %+v", r)
	}

	details := domain.RetirementDetails{RetiredBy: "bob", RetiredAt: 1700000000000, Beneficiary: "acme"}
	if err := store.MarkRetired(ctx, "mint1", details); err != nil {
		t.Fatalf("MarkRetired failed: %v", err)
	}
	r, _ = store.Get(ctx, "mint1")
	if !r.IsRetired || r.Retirement == nil || r.Retirement.Beneficiary != "acme" || r.Status != domain.StatusRetired {
		t.Errorf("after MarkRetired: %+v", r)
	}

	if err := store.MarkListed(ctx, "missing", 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("MarkListed(missing): expected ErrNotFound, got %v", err)
	}
}

func TestRecordStore_MarkUnlisted(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()
	_ = store.Put(ctx, testRecord("mint1", "alice"))
	_ = store.MarkListed(ctx, "mint1", 10)

	if err := store.MarkUnlisted(ctx, "mint1"); err != nil {
		t.Fatalf("MarkUnlisted failed: %v", err)
	}
	r, _ := store.Get(ctx, "mint1")
	if r.IsListed || r.ListingPrice != nil || r.Status != domain.StatusActive || r.Owner != "alice" {
		t.Errorf("after MarkUnlisted: %+v", r)
	}
}

func TestRecordStore_Favorites(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()
	_ = store.Put(ctx, testRecord("mint1", "alice"))

	n, err := store.AdjustFavorites(ctx, "mint1", 1)
	if err != nil || n != 1 {
		t.Fatalf("AdjustFavorites(+1) = %d, %v", n, err)
	}
	n, _ = store.AdjustFavorites(ctx, "mint1", -5)
	if n != 0 {
		t.Errorf("favorites not floored at zero: %d", n)
	}
}

func TestRecordStore_Query(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	store.now = fixedClock(1000)
	_ = store.Put(ctx, testRecord("mint1", "alice"))
	store.now = fixedClock(2000)
	_ = store.Put(ctx, testRecord("mint2", "alice"))
	store.now = fixedClock(3000)
	_ = store.Put(ctx, testRecord("mint3", "bob"))
	_ = store.MarkListed(ctx, "mint3", 5)
	_ = store.Archive(ctx, "mint1")

	byOwner, _ := store.Query(ctx, domain.RecordFilter{Owner: "alice"})
	if len(byOwner) != 1 || byOwner[0].Mint != "mint2" {
		t.Errorf("owner query excluding archived: got %v", mints(byOwner))
	}

	withArchived, _ := store.Query(ctx, domain.RecordFilter{Owner: "alice", IncludeArchived: true})
	if got := mints(withArchived); len(got) != 2 || got[0] != "mint2" || got[1] != "mint1" {
		t.Errorf("owner query with archived, newest first: got %v", got)
	}

	listed, _ := store.Query(ctx, domain.RecordFilter{ListedOnly: true})
	if len(listed) != 1 || listed[0].Mint != "mint3" {
		t.Errorf("listed query: got %v", mints(listed))
	}

	limited, _ := store.Query(ctx, domain.RecordFilter{Limit: 1})
	if len(limited) != 1 || limited[0].Mint != "mint3" {
		t.Errorf("limited query: got %v", mints(limited))
	}
}

func mints(records []*domain.OffChainRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Mint)
	}
	return out
}
