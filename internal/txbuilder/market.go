package txbuilder

import (
	"context"
	"errors"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"carbon-credit-exchange/internal/derive"
	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/ledger"
	"carbon-credit-exchange/internal/program"
)

// List opens a listing of mint at price lamports. The mint must not be
// listed or retired and owner must hold it.
func (b *Builder) List(ctx context.Context, owner ledger.Signer, mint solanago.PublicKey, price uint64) (res *Result, err error) {
	start := time.Now()
	defer func() { b.record("list", start, res, err) }()

	if price == 0 {
		return nil, &PreconditionError{Op: "list", Reason: ReasonInvalidInput, Mint: mint, Detail: "price must be greater than zero"}
	}
	if err := b.requireUnlisted(ctx, "list", mint); err != nil {
		return nil, err
	}
	if err := b.requireNotRetired(ctx, "list", mint); err != nil {
		return nil, err
	}
	if err := b.requireHolder(ctx, "list", owner.PublicKey(), mint); err != nil {
		return nil, err
	}

	listing := derive.ListingAddress(b.lc.ProgramID, mint).Address
	ata := derive.AssociatedTokenAddress(owner.PublicKey(), mint)
	ix := b.exchange.ListForSale(owner.PublicKey(), mint, ata, listing, price)

	sig, status, err := b.submit(ctx, "list", []solanago.Instruction{ix}, owner)
	if sig.IsZero() && err != nil {
		return nil, err
	}
	res = &Result{TokenID: mint, Signature: sig, Status: status}
	if err != nil {
		return res, err
	}
	b.logger.Info("credit listed",
		zap.String("mint", mint.String()),
		zap.String("price_sol", domain.LamportsToSOL(price).String()))
	return res, nil
}

// Buy purchases the active listing of mint. A listing that disappears
// before or during execution is reported as *ListingUnavailableError.
func (b *Builder) Buy(ctx context.Context, buyer ledger.Signer, mint solanago.PublicKey) (res *Result, err error) {
	start := time.Now()
	defer func() { b.record("buy", start, res, err) }()

	listingAddr := derive.ListingAddress(b.lc.ProgramID, mint).Address
	listing, err := b.lc.Listing(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("buy: read listing: %w", err)
	}
	if listing == nil {
		return nil, &ListingUnavailableError{Mint: mint, Listing: listingAddr}
	}
	seller, err := solanago.PublicKeyFromBase58(listing.Seller)
	if err != nil {
		return nil, fmt.Errorf("buy: listing seller %q: %w", listing.Seller, err)
	}
	if seller.Equals(buyer.PublicKey()) {
		return nil, &PreconditionError{Op: "buy", Reason: ReasonInvalidInput, Mint: mint, Account: listingAddr, Detail: "buyer is the seller"}
	}

	need := listing.Price + fee(1)
	buyerATA := derive.AssociatedTokenAddress(buyer.PublicKey(), mint)
	if acc, err := b.lc.Client.FetchAccount(ctx, buyerATA); err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	} else if acc == nil {
		rent, err := b.lc.Client.RentExemption(ctx, ledger.TokenAccountSize)
		if err != nil {
			return nil, fmt.Errorf("buy: %w", err)
		}
		need += rent
	}
	if err := b.requireBalance(ctx, "buy", buyer.PublicKey(), mint, need); err != nil {
		return nil, err
	}

	ix := b.exchange.Buy(program.BuyAccounts{
		Buyer:       buyer.PublicKey(),
		Seller:      seller,
		Mint:        mint,
		SellerToken: derive.AssociatedTokenAddress(seller, mint),
		BuyerToken:  buyerATA,
		Listing:     listingAddr,
	})
	sig, status, err := b.submit(ctx, "buy", []solanago.Instruction{ix}, buyer)
	if err != nil {
		if lost := listingLost(err); lost {
			err = &ListingUnavailableError{Mint: mint, Listing: listingAddr, Err: err}
		}
		if sig.IsZero() {
			return nil, err
		}
		return &Result{TokenID: mint, Signature: sig, Status: status}, err
	}

	b.logger.Info("credit purchased",
		zap.String("mint", mint.String()),
		zap.String("seller", seller.String()),
		zap.String("buyer", buyer.PublicKey().String()),
		zap.String("price_sol", domain.LamportsToSOL(listing.Price).String()))
	return &Result{TokenID: mint, Signature: sig, Status: status}, nil
}

// listingLost reports whether a rejected purchase failed because the
// listing account was closed or now belongs to a different sale.
func listingLost(err error) bool {
	var subErr *ledger.SubmissionError
	if !errors.As(err, &subErr) {
		return false
	}
	switch subErr.ProgramError() {
	case "AccountNotInitialized", "InvalidOwner", "InvalidMint":
		return true
	}
	return false
}

// CancelListing closes owner's listing of mint.
func (b *Builder) CancelListing(ctx context.Context, owner ledger.Signer, mint solanago.PublicKey) (res *Result, err error) {
	start := time.Now()
	defer func() { b.record("cancel", start, res, err) }()

	listingAddr := derive.ListingAddress(b.lc.ProgramID, mint).Address
	listing, err := b.lc.Listing(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("cancel: read listing: %w", err)
	}
	if listing == nil {
		return nil, &PreconditionError{Op: "cancel", Reason: ReasonNotListed, Mint: mint, Account: listingAddr, Detail: "no listing account " + listingAddr.String()}
	}
	if listing.Seller != owner.PublicKey().String() {
		return nil, &PreconditionError{Op: "cancel", Reason: ReasonNotOwner, Mint: mint, Account: listingAddr,
			Detail: fmt.Sprintf("listing %s belongs to %s", listingAddr, listing.Seller)}
	}

	ata := derive.AssociatedTokenAddress(owner.PublicKey(), mint)
	ix := b.exchange.Cancel(owner.PublicKey(), mint, ata, listingAddr)
	sig, status, err := b.submit(ctx, "cancel", []solanago.Instruction{ix}, owner)
	if sig.IsZero() && err != nil {
		return nil, err
	}
	return &Result{TokenID: mint, Signature: sig, Status: status}, err
}

func (b *Builder) requireUnlisted(ctx context.Context, op string, mint solanago.PublicKey) error {
	listing, err := b.lc.Listing(ctx, mint)
	if err != nil {
		return fmt.Errorf("%s: read listing: %w", op, err)
	}
	if listing != nil {
		return &PreconditionError{
			Op:      op,
			Reason:  ReasonAlreadyListed,
			Mint:    mint,
			Account: derive.ListingAddress(b.lc.ProgramID, mint).Address,
			Detail:  fmt.Sprintf("listing account %s exists at %s SOL", listing.Address, domain.LamportsToSOL(listing.Price)),
		}
	}
	return nil
}

func (b *Builder) requireNotRetired(ctx context.Context, op string, mint solanago.PublicKey) error {
	rec, err := b.lc.Retirement(ctx, mint)
	if err != nil {
		return fmt.Errorf("%s: read retirement record: %w", op, err)
	}
	if rec != nil {
		return &PreconditionError{
			Op:      op,
			Reason:  ReasonRetired,
			Mint:    mint,
			Account: derive.RetirementAddress(b.lc.ProgramID, mint).Address,
			Detail:  fmt.Sprintf("retirement record %s exists, retired by %s", rec.Address, rec.RetiredBy),
		}
	}
	return nil
}

func (b *Builder) requireHolder(ctx context.Context, op string, owner, mint solanago.PublicKey) error {
	tok, err := b.lc.TokenAccount(ctx, owner, mint)
	if err != nil {
		return fmt.Errorf("%s: read token account: %w", op, err)
	}
	if tok == nil || tok.Amount < 1 {
		ata := derive.AssociatedTokenAddress(owner, mint)
		return &PreconditionError{
			Op:      op,
			Reason:  ReasonNotOwner,
			Mint:    mint,
			Account: ata,
			Detail:  fmt.Sprintf("you do not own this asset: token account %s of %s holds no unit", ata, owner),
		}
	}
	return nil
}
