package txbuilder

import (
	"context"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"carbon-credit-exchange/internal/derive"
	"carbon-credit-exchange/internal/ledger"
)

// Retire permanently retires mint on behalf of beneficiary, burning the
// token. A zero beneficiary retires on behalf of the owner. The mint must
// not already be retired, must not be listed, and owner must hold it.
func (b *Builder) Retire(ctx context.Context, owner ledger.Signer, mint, beneficiary solanago.PublicKey) (res *Result, err error) {
	start := time.Now()
	defer func() { b.record("retire", start, res, err) }()

	if beneficiary.IsZero() {
		beneficiary = owner.PublicKey()
	}
	if err := b.requireNotRetired(ctx, "retire", mint); err != nil {
		return nil, err
	}
	// A retired token with an open listing would be a dead listing.
	if err := b.requireUnlisted(ctx, "retire", mint); err != nil {
		return nil, err
	}
	if err := b.requireHolder(ctx, "retire", owner.PublicKey(), mint); err != nil {
		return nil, err
	}

	record := derive.RetirementAddress(b.lc.ProgramID, mint).Address
	ata := derive.AssociatedTokenAddress(owner.PublicKey(), mint)
	ix := b.exchange.Retire(owner.PublicKey(), mint, ata, record, beneficiary)

	sig, status, err := b.submit(ctx, "retire", []solanago.Instruction{ix}, owner)
	if sig.IsZero() && err != nil {
		return nil, err
	}
	res = &Result{TokenID: mint, Signature: sig, Status: status}
	if err != nil {
		return res, err
	}
	b.logger.Info("credit retired",
		zap.String("mint", mint.String()),
		zap.String("beneficiary", beneficiary.String()))
	return res, nil
}

// InitializeExchange creates the exchange singleton with authority as its
// authority. It fails with a PreconditionError when the exchange exists.
func (b *Builder) InitializeExchange(ctx context.Context, authority ledger.Signer) (res *Result, err error) {
	start := time.Now()
	defer func() { b.record("initialize", start, res, err) }()

	state, err := b.lc.Exchange(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize: read exchange: %w", err)
	}
	if state != nil {
		return nil, &PreconditionError{
			Op:      "initialize",
			Reason:  ReasonAlreadyInitialized,
			Account: b.exchange.State,
			Detail:  fmt.Sprintf("exchange %s exists with authority %s", state.Address, state.Authority),
		}
	}

	ix := b.exchange.Initialize(authority.PublicKey())
	sig, status, err := b.submit(ctx, "initialize", []solanago.Instruction{ix}, authority)
	if sig.IsZero() && err != nil {
		return nil, err
	}
	return &Result{TokenID: b.exchange.State, Signature: sig, Status: status}, err
}
