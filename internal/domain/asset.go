package domain

// EnrichedAssetView is the request-time merge of on-chain and off-chain
// state for one token. It is never persisted.
type EnrichedAssetView struct {
	TokenID    string
	Listing    *Listing    // nil when not for sale or unknown
	Retirement *Retirement // nil when not retired or unknown
	Record     *OffChainRecord

	IsListed  bool
	IsRetired bool

	// ListingKnown and RetirementKnown are false when the on-chain fetch
	// failed during a batch; the matching Is* flag is then meaningless.
	ListingKnown    bool
	RetirementKnown bool

	ImageURL     string
	MetadataURL  string
	Category     string
	CarbonAmount float64
}

// CanList reports whether a list action may be offered for the asset.
func (v *EnrichedAssetView) CanList() bool {
	return v.ListingKnown && v.RetirementKnown && !v.IsListed && !v.IsRetired
}
