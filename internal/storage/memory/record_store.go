package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/storage"
)

// RecordStore is an in-memory implementation of storage.RecordStore.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]*domain.OffChainRecord // keyed by mint
	now     func() time.Time
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]*domain.OffChainRecord),
		now:     time.Now,
	}
}

var _ storage.RecordStore = (*RecordStore)(nil)

// Get retrieves a record by mint. Returns ErrNotFound if not exists.
func (s *RecordStore) Get(_ context.Context, mint string) (*domain.OffChainRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.records[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneRecord(r), nil
}

// Put inserts or replaces a record, keeping counters and creation time.
func (s *RecordStore) Put(_ context.Context, r *domain.OffChainRecord) error {
	if err := storage.ValidateRecord(r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneRecord(r)
	storage.NormalizeRecord(next)
	now := s.now().UnixMilli()
	if prev, exists := s.records[r.Mint]; exists {
		next.CreatedAt = prev.CreatedAt
		next.Views = prev.Views
		next.Favorites = prev.Favorites
	} else if next.CreatedAt == 0 {
		next.CreatedAt = now
	}
	next.UpdatedAt = now
	s.records[r.Mint] = next
	return nil
}

// Create inserts a new record. Returns ErrDuplicateKey if mint exists.
func (s *RecordStore) Create(_ context.Context, r *domain.OffChainRecord) error {
	if err := storage.ValidateRecord(r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[r.Mint]; exists {
		return storage.ErrDuplicateKey
	}

	next := cloneRecord(r)
	storage.NormalizeRecord(next)
	now := s.now().UnixMilli()
	if next.CreatedAt == 0 {
		next.CreatedAt = now
	}
	next.UpdatedAt = now
	s.records[r.Mint] = next
	return nil
}

// Query returns records matching filter, newest first.
func (s *RecordStore) Query(_ context.Context, filter domain.RecordFilter) ([]*domain.OffChainRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OffChainRecord
	for _, r := range s.records {
		if filter.Owner != "" && r.Owner != filter.Owner {
			continue
		}
		if filter.ListedOnly && !r.IsListed {
			continue
		}
		if !filter.IncludeArchived && r.Status == domain.StatusArchived {
			continue
		}
		result = append(result, cloneRecord(r))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].Mint < result[j].Mint
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// IncrementViews bumps the view counter.
func (s *RecordStore) IncrementViews(_ context.Context, mint string) (int64, error) {
	var views int64
	err := s.update(mint, func(r *domain.OffChainRecord) {
		r.Views++
		views = r.Views
	})
	return views, err
}

// AdjustFavorites adds delta to the favorites counter, floored at zero.
func (s *RecordStore) AdjustFavorites(_ context.Context, mint string, delta int64) (int64, error) {
	var favorites int64
	err := s.update(mint, func(r *domain.OffChainRecord) {
		r.Favorites += delta
		if r.Favorites < 0 {
			r.Favorites = 0
		}
		favorites = r.Favorites
	})
	return favorites, err
}

// Archive soft-deletes a record.
func (s *RecordStore) Archive(_ context.Context, mint string) error {
	return s.update(mint, func(r *domain.OffChainRecord) {
		r.Status = domain.StatusArchived
	})
}

// MarkListed sets the listing shadow flags.
func (s *RecordStore) MarkListed(_ context.Context, mint string, price uint64) error {
	p := int64(price)
	return s.update(mint, func(r *domain.OffChainRecord) {
		r.IsListed = true
		r.ListingPrice = &p
		if r.Status != domain.StatusArchived {
			r.Status = domain.StatusListed
		}
	})
}

// MarkUnlisted clears the listing shadow flags.
func (s *RecordStore) MarkUnlisted(_ context.Context, mint string) error {
	return s.update(mint, clearListing)
}

// MarkSold transfers ownership and clears the listing shadow flags.
func (s *RecordStore) MarkSold(_ context.Context, mint, newOwner string) error {
	if newOwner == "" {
		return storage.ErrInvalidInput
	}
	return s.update(mint, func(r *domain.OffChainRecord) {
		r.Owner = newOwner
		clearListing(r)
	})
}

// MarkRetired sets the retirement shadow flags and details.
func (s *RecordStore) MarkRetired(_ context.Context, mint string, details domain.RetirementDetails) error {
	return s.update(mint, func(r *domain.OffChainRecord) {
		d := details
		r.IsRetired = true
		r.Retirement = &d
		r.IsListed = false
		r.ListingPrice = nil
		if r.Status != domain.StatusArchived {
			r.Status = domain.StatusRetired
		}
	})
}

func clearListing(r *domain.OffChainRecord) {
	r.IsListed = false
	r.ListingPrice = nil
	if r.Status == domain.StatusListed {
		r.Status = domain.StatusActive
	}
}

func (s *RecordStore) update(mint string, fn func(*domain.OffChainRecord)) error {
	if mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.records[mint]
	if !exists {
		return storage.ErrNotFound
	}
	fn(r)
	r.UpdatedAt = s.now().UnixMilli()
	return nil
}

func cloneRecord(r *domain.OffChainRecord) *domain.OffChainRecord {
	c := *r
	if r.ListingPrice != nil {
		p := *r.ListingPrice
		c.ListingPrice = &p
	}
	if r.Retirement != nil {
		d := *r.Retirement
		c.Retirement = &d
	}
	if r.Metadata.Attributes != nil {
		c.Metadata.Attributes = append([]domain.Attribute(nil), r.Metadata.Attributes...)
	}
	return &c
}
