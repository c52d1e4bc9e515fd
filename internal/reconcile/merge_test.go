package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"carbon-credit-exchange/internal/contentstore"
	"carbon-credit-exchange/internal/domain"
)

var testGateway = contentstore.NewGateway("https://gateway.example/ipfs")

func TestMerge_Category(t *testing.T) {
	doc := &domain.MetadataDocument{Attributes: []domain.Attribute{{TraitType: domain.TraitProjectType, Value: "Agriculture"}}}

	tests := []struct {
		name string
		on   *RawOnChain
		off  *RawOffChain
		want string
	}{
		{
			name: "off-chain project type wins",
			on:   &RawOnChain{Document: doc},
			off:  &RawOffChain{ProjectType: domain.ProjectForestry},
			want: "Forestry",
		},
		{
			name: "on-chain attribute when off-chain empty",
			on:   &RawOnChain{Document: doc},
			off:  &RawOffChain{},
			want: "Agriculture",
		},
		{
			name: "snapshot attribute after on-chain",
			on:   &RawOnChain{},
			off: &RawOffChain{Metadata: domain.MetadataSnapshot{
				Attributes: []domain.Attribute{{TraitType: domain.TraitProjectType, Value: "Industrial"}},
			}},
			want: "Industrial",
		},
		{
			name: "unknown when nothing present",
			on:   &RawOnChain{},
			off:  &RawOffChain{},
			want: UnknownCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := Merge("mint", tt.on, tt.off, testGateway)
			assert.Equal(t, tt.want, view.Category)
		})
	}
}

func TestMerge_Image(t *testing.T) {
	on := &RawOnChain{
		Metadata: &domain.TokenMetadata{URI: "ipfs://chain"},
		Document: &domain.MetadataDocument{Image: "ipfs://docimage"},
	}

	view := Merge("mint", on, &RawOffChain{ImageLocator: "ipfs://abc", Metadata: domain.MetadataSnapshot{Image: "ipfs://snap"}}, testGateway)
	assert.Equal(t, "https://gateway.example/ipfs/abc", view.ImageURL)

	view = Merge("mint", on, &RawOffChain{Metadata: domain.MetadataSnapshot{Image: "https://cdn.example/a.png"}}, testGateway)
	assert.Equal(t, "https://cdn.example/a.png", view.ImageURL)

	view = Merge("mint", on, &RawOffChain{Placeholder: true}, testGateway)
	assert.Equal(t, "https://gateway.example/ipfs/docimage", view.ImageURL)

	// The metadata URI points at the JSON document, never at an image.
	view = Merge("mint", &RawOnChain{Metadata: on.Metadata}, &RawOffChain{}, testGateway)
	assert.Empty(t, view.ImageURL)
	assert.Equal(t, "https://gateway.example/ipfs/chain", view.MetadataURL)

	view = Merge("mint", &RawOnChain{}, &RawOffChain{}, testGateway)
	assert.Empty(t, view.ImageURL)
}

func TestMerge_MetadataURL(t *testing.T) {
	on := &RawOnChain{Metadata: &domain.TokenMetadata{URI: "ipfs://chain"}}

	assert.Equal(t, "https://gateway.example/ipfs/meta",
		Merge("mint", on, &RawOffChain{MetadataLocator: "meta"}, testGateway).MetadataURL)
	assert.Equal(t, "https://gateway.example/ipfs/chain",
		Merge("mint", on, &RawOffChain{}, testGateway).MetadataURL)
}

func TestMerge_Quantity(t *testing.T) {
	doc := &domain.MetadataDocument{Attributes: []domain.Attribute{{TraitType: domain.TraitCreditAmount, Value: "42.5"}}}

	assert.Equal(t, 10.0, Merge("m", &RawOnChain{Document: doc}, &RawOffChain{CarbonAmount: 10}, testGateway).CarbonAmount)
	assert.Equal(t, 42.5, Merge("m", &RawOnChain{Document: doc}, &RawOffChain{}, testGateway).CarbonAmount)

	bad := &domain.MetadataDocument{Attributes: []domain.Attribute{{TraitType: domain.TraitCreditAmount, Value: "lots"}}}
	assert.Zero(t, Merge("m", &RawOnChain{Document: bad}, &RawOffChain{}, testGateway).CarbonAmount)
}

func TestMerge_Flags(t *testing.T) {
	on := &RawOnChain{
		Listing:         &domain.Listing{Price: 5},
		Retirement:      &domain.Retirement{RetiredBy: "bob"},
		ListingKnown:    true,
		RetirementKnown: true,
	}
	off := &RawOffChain{Mint: "mint"}

	view := Merge("mint", on, off, testGateway)
	assert.True(t, view.IsListed, "both flags reported as observed")
	assert.True(t, view.IsRetired)
	assert.Same(t, off, view.Record)
	assert.False(t, view.CanList())

	view = Merge("mint", nil, off, testGateway)
	assert.False(t, view.IsListed)
	assert.False(t, view.ListingKnown)
	assert.Equal(t, UnknownCategory, view.Category)
}
