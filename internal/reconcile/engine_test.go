package reconcile_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-credit-exchange/internal/contentstore"
	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/ledger"
	"carbon-credit-exchange/internal/ledger/ledgertest"
	"carbon-credit-exchange/internal/program"
	"carbon-credit-exchange/internal/reconcile"
	"carbon-credit-exchange/internal/storage"
	"carbon-credit-exchange/internal/storage/memory"
)

var programID = solanago.MustPublicKeyFromBase58(program.DefaultExchangeProgramID)

func key(b byte) solanago.PublicKey {
	return solanago.PublicKey{b, 1, 2, 3}
}

type fixture struct {
	sim     *ledgertest.Simulator
	lc      *ledger.Context
	records *memory.RecordStore
	engine  *reconcile.Engine
}

func newFixture(opts ...reconcile.Option) *fixture {
	sim := ledgertest.New(programID)
	lc := ledger.NewContext(sim, programID)
	records := memory.NewRecordStore()
	opts = append([]reconcile.Option{reconcile.WithGateway(contentstore.NewGateway("https://gw.example/ipfs"))}, opts...)
	return &fixture{
		sim:     sim,
		lc:      lc,
		records: records,
		engine:  reconcile.New(lc, records, opts...),
	}
}

func TestEnrich_HardMissWithListingPresent(t *testing.T) {
	f := newFixture()
	mint := key(1)
	f.sim.InstallListing(key(2), mint, 10)

	_, err := f.engine.Enrich(context.Background(), mint)

	var miss *reconcile.MissError
	require.ErrorAs(t, err, &miss)
	assert.Equal(t, mint.String(), miss.TokenID)
}

type failingStore struct {
	storage.RecordStore
	err error
}

func (s failingStore) Get(context.Context, string) (*domain.OffChainRecord, error) {
	return nil, s.err
}

func TestEnrich_StoreFailureIsNotAMiss(t *testing.T) {
	sim := ledgertest.New(programID)
	boom := errors.New("connection refused")
	engine := reconcile.New(ledger.NewContext(sim, programID), failingStore{err: boom})

	_, err := engine.Enrich(context.Background(), key(1))
	assert.ErrorIs(t, err, boom)
	var miss *reconcile.MissError
	assert.False(t, errors.As(err, &miss))
}

func TestEnrich_ReflectsOnChainState(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	mint, seller := key(1), key(2)

	require.NoError(t, f.records.Put(ctx, &domain.OffChainRecord{
		Mint:         mint.String(),
		Owner:        seller.String(),
		ProjectType:  domain.ProjectForestry,
		CarbonAmount: 25,
		ImageLocator: "ipfs://img",
	}))
	f.sim.InstallListing(seller, mint, 2_500_000_000)

	view, err := f.engine.Enrich(ctx, mint)
	require.NoError(t, err)
	assert.True(t, view.IsListed)
	assert.False(t, view.IsRetired)
	assert.True(t, view.ListingKnown)
	assert.True(t, view.RetirementKnown)
	require.NotNil(t, view.Listing)
	assert.Equal(t, uint64(2_500_000_000), view.Listing.Price)
	assert.Equal(t, "Forestry", view.Category)
	assert.Equal(t, "https://gw.example/ipfs/img", view.ImageURL)
	assert.Equal(t, 25.0, view.CarbonAmount)

	f.sim.InstallRetirement(seller, mint, seller, 1_700_000_000)
	view, err = f.engine.Enrich(ctx, mint)
	require.NoError(t, err)
	assert.True(t, view.IsRetired)
	assert.Equal(t, seller.String(), view.Retirement.Beneficiary)
}

func TestEnrich_DocumentFallback(t *testing.T) {
	docs := contentstore.NewMemory()
	f := newFixture(reconcile.WithDocuments(docs))
	ctx := context.Background()
	mint, issuer := key(1), key(2)

	uri, err := docs.Upload(ctx, []byte(`{
		"name": "CC",
		"image": "ipfs://bafkreiimage",
		"attributes": [
			{"trait_type": "Project Type", "value": "Reforestation"},
			{"trait_type": "Credit Amount (tCO2e)", "value": "7"}
		]
	}`), "metadata.json")
	require.NoError(t, err)
	f.sim.InstallMetadata(issuer, mint, "CC", "CCX", uri)
	require.NoError(t, f.records.Create(ctx, &domain.OffChainRecord{Mint: mint.String(), Placeholder: true}))

	view, err := f.engine.Enrich(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, "Reforestation", view.Category)
	assert.Equal(t, 7.0, view.CarbonAmount)
	assert.Equal(t, "https://gw.example/ipfs/"+contentstore.CID(uri), view.MetadataURL)
	assert.Equal(t, "https://gw.example/ipfs/bafkreiimage", view.ImageURL)
}

func TestEnrich_FetchesDocumentForMissingImage(t *testing.T) {
	docs := contentstore.NewMemory()
	f := newFixture(reconcile.WithDocuments(docs))
	ctx := context.Background()
	mint, issuer := key(1), key(2)

	uri, err := docs.Upload(ctx, []byte(`{"name": "CC", "image": "ipfs://bafkreiimage"}`), "metadata.json")
	require.NoError(t, err)
	f.sim.InstallMetadata(issuer, mint, "CC", "CCX", uri)
	require.NoError(t, f.records.Create(ctx, &domain.OffChainRecord{
		Mint:            mint.String(),
		ProjectType:     domain.ProjectForestry,
		CarbonAmount:    5,
		MetadataLocator: uri,
	}))

	view, err := f.engine.Enrich(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, "https://gw.example/ipfs/bafkreiimage", view.ImageURL)
	assert.Equal(t, 5.0, view.CarbonAmount)
}

// flakyChain fails listing reads for selected mints.
type flakyChain struct {
	reconcile.ChainReader
	mu      sync.Mutex
	failing map[solanago.PublicKey]bool
}

func (c *flakyChain) Listing(ctx context.Context, mint solanago.PublicKey) (*domain.Listing, error) {
	c.mu.Lock()
	fail := c.failing[mint]
	c.mu.Unlock()
	if fail {
		return nil, errors.New("rpc timeout")
	}
	return c.ChainReader.Listing(ctx, mint)
}

func TestEnrich_StrictOnChainFailure(t *testing.T) {
	sim := ledgertest.New(programID)
	records := memory.NewRecordStore()
	mint := key(1)
	chain := &flakyChain{ChainReader: ledger.NewContext(sim, programID), failing: map[solanago.PublicKey]bool{mint: true}}
	require.NoError(t, records.Put(context.Background(), &domain.OffChainRecord{Mint: mint.String()}))

	_, err := reconcile.New(chain, records).Enrich(context.Background(), mint)
	assert.ErrorContains(t, err, "rpc timeout")
}

func TestEnrichAll_OrderMissesAndDegradation(t *testing.T) {
	sim := ledgertest.New(programID)
	records := memory.NewRecordStore()
	ctx := context.Background()

	ids := []solanago.PublicKey{key(1), key(2), key(3), key(4)}
	for _, id := range []solanago.PublicKey{key(1), key(2), key(4)} {
		require.NoError(t, records.Put(ctx, &domain.OffChainRecord{Mint: id.String(), ProjectType: domain.ProjectForestry}))
	}
	sim.InstallListing(key(9), key(1), 10)
	sim.InstallListing(key(9), key(2), 20)

	chain := &flakyChain{ChainReader: ledger.NewContext(sim, programID), failing: map[solanago.PublicKey]bool{key(2): true}}
	engine := reconcile.New(chain, records, reconcile.WithWorkers(2))

	items := engine.EnrichAll(ctx, ids)
	require.Len(t, items, 4)
	for i, item := range items {
		assert.Equal(t, ids[i].String(), item.TokenID)
	}

	require.NoError(t, items[0].Err)
	assert.True(t, items[0].View.IsListed)
	assert.True(t, items[0].View.ListingKnown)

	require.NoError(t, items[1].Err, "ledger failure degrades instead of failing")
	assert.False(t, items[1].View.ListingKnown)
	assert.False(t, items[1].View.IsListed)
	assert.True(t, items[1].View.RetirementKnown)
	assert.False(t, items[1].View.CanList())

	var miss *reconcile.MissError
	assert.ErrorAs(t, items[2].Err, &miss)
	assert.Nil(t, items[2].View)

	require.NoError(t, items[3].Err)
	assert.False(t, items[3].View.IsListed)

	assert.Empty(t, engine.EnrichAll(ctx, nil))
}
