package domain

// ActivityKind is the marketplace event type.
type ActivityKind string

const (
	ActivityMint   ActivityKind = "MINT"
	ActivityList   ActivityKind = "LIST"
	ActivityCancel ActivityKind = "CANCEL"
	ActivitySale   ActivityKind = "SALE"
	ActivityRetire ActivityKind = "RETIRE"
)

// ActivityEvent is one marketplace event observed on-chain.
// Corresponds to the marketplace_activity table in ClickHouse.
type ActivityEvent struct {
	EventID      string // deterministic hash, see idhash.ComputeActivityID
	Kind         ActivityKind
	Mint         string
	Actor        string // seller, owner or minter
	Counterparty string // buyer or beneficiary (may be empty)
	Price        uint64 // lamports, zero when not applicable
	Signature    string
	Slot         int64
	Timestamp    int64 // Unix ms
}

// SalesSummary aggregates SALE events.
type SalesSummary struct {
	Sales        int64
	VolumeSOL    float64
	AverageSOL   float64
	UniqueBuyers int64
}

// MarketplaceStats summarizes the currently active listings.
type MarketplaceStats struct {
	TotalListings int     `json:"totalListings"`
	TotalVolume   float64 `json:"totalVolume"` // sum of listing prices in SOL
	AveragePrice  float64 `json:"averagePrice"`
	MinPrice      float64 `json:"minPrice"`
	MaxPrice      float64 `json:"maxPrice"`
	ActiveSellers int     `json:"activeSellers"`
}
