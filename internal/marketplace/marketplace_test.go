package marketplace_test

import (
	"context"
	"errors"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/ledger"
	"carbon-credit-exchange/internal/ledger/ledgertest"
	"carbon-credit-exchange/internal/marketplace"
	"carbon-credit-exchange/internal/program"
	"carbon-credit-exchange/internal/storage/memory"
)

var programID = solanago.MustPublicKeyFromBase58(program.DefaultExchangeProgramID)

const sol = domain.LamportsPerSOL

func key(b byte) solanago.PublicKey {
	return solanago.PublicKey{b, 0xcc}
}

func TestComputeStats(t *testing.T) {
	stats := marketplace.ComputeStats(nil)
	assert.Equal(t, &domain.MarketplaceStats{}, stats)

	stats = marketplace.ComputeStats([]*domain.Listing{
		{Seller: "alice", Price: 2_500_000_000},
		{Seller: "alice", Price: 500_000_000},
		{Seller: "bob", Price: 1_000_000_000},
	})
	assert.Equal(t, 3, stats.TotalListings)
	assert.Equal(t, 4.0, stats.TotalVolume)
	assert.InDelta(t, 1.333333333, stats.AveragePrice, 1e-9)
	assert.Equal(t, 0.5, stats.MinPrice)
	assert.Equal(t, 2.5, stats.MaxPrice)
	assert.Equal(t, 2, stats.ActiveSellers)
}

func newService(t *testing.T) (*ledgertest.Simulator, *marketplace.Service, *memory.ActivityStore) {
	t.Helper()
	sim := ledgertest.New(programID)
	activity := memory.NewActivityStore()
	svc := marketplace.New(ledger.NewContext(sim, programID), marketplace.WithActivity(activity))
	return sim, svc, activity
}

func TestListings_SortedAndFilteredBySeller(t *testing.T) {
	sim, svc, _ := newService(t)
	ctx := context.Background()
	alice, bob := key(1), key(2)
	sim.InstallListing(alice, key(10), 3*sol)
	sim.InstallListing(bob, key(11), sol)
	sim.InstallListing(alice, key(12), 2*sol)

	all, err := svc.Listings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uint64{sol, 2 * sol, 3 * sol}, []uint64{all[0].Price, all[1].Price, all[2].Price})

	mine, err := svc.BySeller(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, l := range mine {
		assert.Equal(t, alice.String(), l.Seller)
	}

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalListings)
	assert.Equal(t, 2, stats.ActiveSellers)
	assert.Equal(t, 6.0, stats.TotalVolume)
}

func TestEntries_WithMetadata(t *testing.T) {
	sim, svc, _ := newService(t)
	ctx := context.Background()
	seller := key(1)
	sim.InstallListing(seller, key(10), 2_500_000_000)
	sim.InstallListing(seller, key(11), sol)
	sim.InstallMetadata(seller, key(10), "Kariba REDD+", "CARBON", "ipfs://kariba")

	entries, err := svc.Entries(ctx, solanago.PublicKey{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Nil(t, entries[0].Metadata, "token without metadata account")
	require.NotNil(t, entries[1].Metadata)
	assert.Equal(t, "Kariba REDD+", entries[1].Metadata.Name)
	assert.Equal(t, "2.5", entries[1].PriceSOL.String())

	entry, err := svc.Get(ctx, key(10))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "ipfs://kariba", entry.Metadata.URI)

	entry, err = svc.Get(ctx, key(99))
	require.NoError(t, err)
	assert.Nil(t, entry)
}

type brokenMetadata struct {
	marketplace.Chain
}

func (brokenMetadata) Metadata(context.Context, solanago.PublicKey) (*domain.TokenMetadata, error) {
	return nil, errors.New("rpc: 503")
}

func TestEntries_MetadataFailureKeepsListing(t *testing.T) {
	sim := ledgertest.New(programID)
	sim.InstallListing(key(1), key(10), sol)
	svc := marketplace.New(brokenMetadata{ledger.NewContext(sim, programID)})

	entries, err := svc.Entries(context.Background(), solanago.PublicKey{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Metadata)
}

func TestExchangeStats(t *testing.T) {
	sim, svc, _ := newService(t)
	ctx := context.Background()

	stats, err := svc.Exchange(ctx)
	require.NoError(t, err)
	assert.Nil(t, stats.Exchange)

	sim.InstallExchange(key(5), 7)
	sim.InstallListing(key(1), key(10), sol)
	stats, err = svc.Exchange(ctx)
	require.NoError(t, err)
	require.NotNil(t, stats.Exchange)
	assert.Equal(t, uint64(7), stats.Exchange.TotalCredits)
	assert.Equal(t, 1, stats.ActiveListings)
}

func TestSalesAndHistory(t *testing.T) {
	_, svc, activity := newService(t)
	ctx := context.Background()
	mint := key(10)
	require.NoError(t, activity.InsertBulk(ctx, []*domain.ActivityEvent{
		{EventID: "a", Kind: domain.ActivityList, Mint: mint.String(), Actor: "alice", Price: sol, Slot: 1, Timestamp: 1000},
		{EventID: "b", Kind: domain.ActivitySale, Mint: mint.String(), Actor: "alice", Counterparty: "bob", Price: sol, Slot: 2, Timestamp: 2000},
	}))

	summary, err := svc.Sales(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Sales)
	assert.Equal(t, 1.0, summary.VolumeSOL)

	history, err := svc.History(ctx, mint)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ActivityList, history[0].Kind)

	recent, err := svc.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "b", recent[0].EventID)

	empty := marketplace.New(nil)
	summary, err = empty.Sales(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, summary.Sales)
}
