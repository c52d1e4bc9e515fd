package memory

import (
	"context"
	"sort"
	"sync"

	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/storage"
)

// ActivityStore is an in-memory implementation of storage.ActivityStore.
type ActivityStore struct {
	mu     sync.RWMutex
	events []*domain.ActivityEvent
	seen   map[string]struct{} // event ids
}

// NewActivityStore creates a new in-memory activity store.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{
		seen: make(map[string]struct{}),
	}
}

var _ storage.ActivityStore = (*ActivityStore)(nil)

// InsertBulk adds events, skipping known event ids.
func (s *ActivityStore) InsertBulk(_ context.Context, events []*domain.ActivityEvent) error {
	for _, e := range events {
		if e == nil || e.EventID == "" || e.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if _, exists := s.seen[e.EventID]; exists {
			continue
		}
		s.seen[e.EventID] = struct{}{}
		eventCopy := *e
		s.events = append(s.events, &eventCopy)
	}
	return nil
}

// GetByMint retrieves all events of a token, ordered by slot ASC.
func (s *ActivityStore) GetByMint(_ context.Context, mint string) ([]*domain.ActivityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ActivityEvent
	for _, e := range s.events {
		if e.Mint == mint {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Slot != result[j].Slot {
			return result[i].Slot < result[j].Slot
		}
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}

// Recent returns the latest events, newest first.
func (s *ActivityStore) Recent(_ context.Context, limit int) ([]*domain.ActivityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ActivityEvent, 0, len(s.events))
	for _, e := range s.events {
		eventCopy := *e
		result = append(result, &eventCopy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Slot != result[j].Slot {
			return result[i].Slot > result[j].Slot
		}
		return result[i].Timestamp > result[j].Timestamp
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// SalesSummary aggregates SALE events since the given Unix ms.
func (s *ActivityStore) SalesSummary(_ context.Context, since int64) (*domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sales []*domain.ActivityEvent
	for _, e := range s.events {
		if e.Kind == domain.ActivitySale && e.Timestamp >= since {
			sales = append(sales, e)
		}
	}
	return storage.SummarizeSales(sales), nil
}
