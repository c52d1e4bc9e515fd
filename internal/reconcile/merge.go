package reconcile

import (
	"strconv"
	"strings"

	"carbon-credit-exchange/internal/contentstore"
	"carbon-credit-exchange/internal/domain"
)

// UnknownCategory is the category of a token with no project type anywhere.
const UnknownCategory = "Unknown"

// RawOnChain is everything read from the ledger for one token. Nil fields
// are absent accounts; the Known flags are false when the read failed.
type RawOnChain struct {
	Listing         *domain.Listing
	Retirement      *domain.Retirement
	Metadata        *domain.TokenMetadata
	Document        *domain.MetadataDocument // fetched from Metadata.URI, may be nil
	ListingKnown    bool
	RetirementKnown bool
}

// RawOffChain is the stored record of one token.
type RawOffChain = domain.OffChainRecord

// source yields a candidate value; "" means absent.
type source func(on *RawOnChain, off *RawOffChain) string

// Priority lists: the first non-empty value wins.
var (
	imagePriority = []source{
		func(_ *RawOnChain, off *RawOffChain) string { return off.ImageLocator },
		func(_ *RawOnChain, off *RawOffChain) string { return off.Metadata.Image },
		func(on *RawOnChain, _ *RawOffChain) string {
			return documentField(on, func(d *domain.MetadataDocument) string { return d.Image })
		},
	}

	metadataPriority = []source{
		func(_ *RawOnChain, off *RawOffChain) string { return off.MetadataLocator },
		func(on *RawOnChain, _ *RawOffChain) string { return metadataURI(on) },
		func(_ *RawOnChain, off *RawOffChain) string { return off.Metadata.URI },
	}

	categoryPriority = []source{
		func(_ *RawOnChain, off *RawOffChain) string { return string(off.ProjectType) },
		func(on *RawOnChain, _ *RawOffChain) string { return onChainAttribute(on, domain.TraitProjectType) },
		func(_ *RawOnChain, off *RawOffChain) string { return off.Metadata.Attribute(domain.TraitProjectType) },
		func(_ *RawOnChain, _ *RawOffChain) string { return UnknownCategory },
	}

	quantityPriority = []source{
		func(_ *RawOnChain, off *RawOffChain) string {
			if off.CarbonAmount > 0 {
				return strconv.FormatFloat(off.CarbonAmount, 'f', -1, 64)
			}
			return ""
		},
		func(on *RawOnChain, _ *RawOffChain) string { return onChainAttribute(on, domain.TraitCreditAmount) },
		func(_ *RawOnChain, off *RawOffChain) string { return off.Metadata.Attribute(domain.TraitCreditAmount) },
	}
)

func resolve(list []source, on *RawOnChain, off *RawOffChain) string {
	for _, src := range list {
		if v := strings.TrimSpace(src(on, off)); v != "" {
			return v
		}
	}
	return ""
}

func metadataURI(on *RawOnChain) string {
	if on.Metadata == nil {
		return ""
	}
	return on.Metadata.URI
}

func documentField(on *RawOnChain, get func(*domain.MetadataDocument) string) string {
	if on.Document == nil {
		return ""
	}
	return get(on.Document)
}

func onChainAttribute(on *RawOnChain, trait string) string {
	return documentField(on, func(d *domain.MetadataDocument) string { return d.Attribute(trait) })
}

// Merge builds the enriched view of one token. It is total: every field
// has a defined value for any input. Locators are resolved through g.
func Merge(tokenID string, on *RawOnChain, off *RawOffChain, g contentstore.Gateway) *domain.EnrichedAssetView {
	if on == nil {
		on = &RawOnChain{}
	}
	view := &domain.EnrichedAssetView{
		TokenID:         tokenID,
		Listing:         on.Listing,
		Retirement:      on.Retirement,
		Record:          off,
		IsListed:        on.Listing != nil,
		IsRetired:       on.Retirement != nil,
		ListingKnown:    on.ListingKnown,
		RetirementKnown: on.RetirementKnown,
	}
	if off == nil {
		off = &RawOffChain{}
	}

	view.ImageURL = g.URL(resolve(imagePriority, on, off))
	view.MetadataURL = g.URL(resolve(metadataPriority, on, off))
	view.Category = resolve(categoryPriority, on, off)
	if q, err := strconv.ParseFloat(resolve(quantityPriority, on, off), 64); err == nil {
		view.CarbonAmount = q
	}
	return view
}
