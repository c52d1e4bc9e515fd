package orchestrator_test

import (
	"context"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-credit-exchange/internal/contentstore"
	"carbon-credit-exchange/internal/derive"
	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/reconcile"
	"carbon-credit-exchange/internal/txbuilder"
)

// Mint through the saga, list at 2.5 SOL, fail to relist, sell to another
// identity, check the enriched view, retire, then fail to list again.
func TestLifecycle_T1(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := newKeypair(t)
	f.sim.Airdrop(bob.PublicKey(), 100*sol)
	engine := reconcile.New(f.lc, f.records,
		reconcile.WithGateway(contentstore.NewGateway("https://gateway.example/ipfs")))

	minted, err := f.orchestrator(nil).Mint(ctx, mangroveRequest(f.issuer))
	require.NoError(t, err)
	t1 := minted.TokenID

	view, err := engine.Enrich(ctx, t1)
	require.NoError(t, err)
	assert.True(t, view.CanList())
	assert.Equal(t, "Reforestation", view.Category)
	assert.Equal(t, "https://gateway.example/ipfs/"+contentstore.CID(minted.ImageLocator), view.ImageURL)

	price, err := domain.ParseSOL("2.5")
	require.NoError(t, err)
	require.Equal(t, uint64(2_500_000_000), price)

	_, err = f.builder.List(ctx, f.issuer, t1, price)
	require.NoError(t, err)

	view, err = engine.Enrich(ctx, t1)
	require.NoError(t, err)
	assert.True(t, view.IsListed)
	assert.Equal(t, price, view.Listing.Price)

	_, err = f.builder.List(ctx, f.issuer, t1, price)
	assert.True(t, txbuilder.IsReason(err, txbuilder.ReasonAlreadyListed), "relist: %v", err)

	_, err = f.builder.Buy(ctx, bob, t1)
	require.NoError(t, err)

	view, err = engine.Enrich(ctx, t1)
	require.NoError(t, err)
	assert.False(t, view.IsListed)
	assert.False(t, view.IsRetired)

	_, err = f.builder.Retire(ctx, bob, t1, solanago.PublicKey{})
	require.NoError(t, err)

	view, err = engine.Enrich(ctx, t1)
	require.NoError(t, err)
	assert.True(t, view.IsRetired)
	assert.Equal(t, bob.PublicKey().String(), view.Retirement.RetiredBy)
	assert.False(t, view.CanList())

	_, err = f.builder.List(ctx, bob, t1, price)
	var pe *txbuilder.PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, txbuilder.ReasonRetired, pe.Reason)
	assert.Equal(t, derive.RetirementAddress(programID, t1).Address, pe.Account)
}
