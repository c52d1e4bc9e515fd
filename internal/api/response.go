package api

import (
	"github.com/shopspring/decimal"

	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/marketplace"
)

type assetResponse struct {
	Mint         string  `json:"mint"`
	Owner        string  `json:"owner"`
	ProjectName  string  `json:"projectName"`
	Location     string  `json:"location,omitempty"`
	VintageYear  int     `json:"vintageYear,omitempty"`
	Standard     string  `json:"standard,omitempty"`
	Description  string  `json:"description,omitempty"`
	Category     string  `json:"category"`
	CarbonAmount float64 `json:"carbonAmount"`
	ImageURL     string  `json:"imageUrl,omitempty"`
	MetadataURL  string  `json:"metadataUrl,omitempty"`
	Views        int64   `json:"views"`
	Favorites    int64   `json:"favorites"`
	Placeholder  bool    `json:"placeholder,omitempty"`

	IsListed        bool                      `json:"isListed"`
	IsRetired       bool                      `json:"isRetired"`
	ListingKnown    bool                      `json:"listingKnown"`
	RetirementKnown bool                      `json:"retirementKnown"`
	CanList         bool                      `json:"canList"`
	Price           *decimal.Decimal          `json:"priceSol,omitempty"`
	Seller          string                    `json:"seller,omitempty"`
	Retirement      *domain.RetirementDetails `json:"retirement,omitempty"`
}

func newAssetResponse(v *domain.EnrichedAssetView) assetResponse {
	rec := v.Record
	resp := assetResponse{
		Mint:            v.TokenID,
		Owner:           rec.Owner,
		ProjectName:     rec.ProjectName,
		VintageYear:     rec.VintageYear,
		Standard:        string(rec.Standard),
		Description:     rec.Description,
		Category:        v.Category,
		CarbonAmount:    v.CarbonAmount,
		ImageURL:        v.ImageURL,
		MetadataURL:     v.MetadataURL,
		Views:           rec.Views,
		Favorites:       rec.Favorites,
		Placeholder:     rec.Placeholder,
		IsListed:        v.IsListed,
		IsRetired:       v.IsRetired,
		ListingKnown:    v.ListingKnown,
		RetirementKnown: v.RetirementKnown,
		CanList:         v.CanList(),
	}
	if rec.Location != (domain.Location{}) {
		resp.Location = rec.Location.String()
	}
	if v.Listing != nil {
		price := domain.LamportsToSOL(v.Listing.Price)
		resp.Price = &price
		resp.Seller = v.Listing.Seller
	}
	if v.Retirement != nil {
		resp.Retirement = &domain.RetirementDetails{
			RetiredBy:   v.Retirement.RetiredBy,
			RetiredAt:   v.Retirement.RetiredAt * 1000,
			Beneficiary: v.Retirement.Beneficiary,
		}
	}
	return resp
}

type listingResponse struct {
	Mint     string          `json:"mint"`
	Seller   string          `json:"seller"`
	Price    uint64          `json:"priceLamports"`
	PriceSOL decimal.Decimal `json:"priceSol"`
	Name     string          `json:"name,omitempty"`
	Symbol   string          `json:"symbol,omitempty"`
	URI      string          `json:"uri,omitempty"`
}

func newListingResponse(e marketplace.Entry) listingResponse {
	resp := listingResponse{
		Mint:     e.Listing.Mint,
		Seller:   e.Listing.Seller,
		Price:    e.Listing.Price,
		PriceSOL: e.PriceSOL,
	}
	if e.Metadata != nil {
		resp.Name = e.Metadata.Name
		resp.Symbol = e.Metadata.Symbol
		resp.URI = e.Metadata.URI
	}
	return resp
}
