package storage

import (
	"github.com/shopspring/decimal"

	"carbon-credit-exchange/internal/domain"
)

// SummarizeSales aggregates SALE events in memory. Backends that cannot
// aggregate server-side use it.
func SummarizeSales(sales []*domain.ActivityEvent) *domain.SalesSummary {
	summary := &domain.SalesSummary{}
	if len(sales) == 0 {
		return summary
	}

	var volume uint64
	buyers := make(map[string]struct{})
	for _, e := range sales {
		volume += e.Price
		if e.Counterparty != "" {
			buyers[e.Counterparty] = struct{}{}
		}
	}

	total := domain.LamportsToSOL(volume)
	summary.Sales = int64(len(sales))
	summary.VolumeSOL = total.InexactFloat64()
	summary.AverageSOL = total.DivRound(decimal.NewFromInt(int64(len(sales))), 9).InexactFloat64()
	summary.UniqueBuyers = int64(len(buyers))
	return summary
}
