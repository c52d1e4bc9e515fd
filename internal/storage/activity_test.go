package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"carbon-credit-exchange/internal/domain"
)

func TestSummarizeSales(t *testing.T) {
	assert.Equal(t, &domain.SalesSummary{}, SummarizeSales(nil))

	summary := SummarizeSales([]*domain.ActivityEvent{
		{Kind: domain.ActivitySale, Price: 2_500_000_000, Counterparty: "bob"},
		{Kind: domain.ActivitySale, Price: 500_000_000, Counterparty: "carol"},
		{Kind: domain.ActivitySale, Price: 1_000_000_000, Counterparty: "bob"},
	})
	assert.Equal(t, int64(3), summary.Sales)
	assert.InDelta(t, 4.0, summary.VolumeSOL, 1e-9)
	assert.InDelta(t, 4.0/3, summary.AverageSOL, 1e-9)
	assert.Equal(t, int64(2), summary.UniqueBuyers)
}
