package ledgertest

import (
	"bytes"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"

	"carbon-credit-exchange/internal/derive"
	"carbon-credit-exchange/internal/events"
	"carbon-credit-exchange/internal/ledger"
	"carbon-credit-exchange/internal/program"
)

// Anchor framework error numbers.
const (
	errConstraintSeeds       = 2006
	errConstraintAssociated  = 2009
	errConstraintTokenOwner  = 2015
	errAccountNotSigner      = 3010
	errAccountNotInitialized = 3012
)

// Exchange program error numbers.
const (
	errInvalidPrice        = 6000
	errInvalidTokenBalance = 6001
	errInsufficientFunds   = 6002
	errInvalidOwner        = 6004
	errInvalidMint         = 6005
)

var anchorMessages = map[uint32][2]string{
	errConstraintSeeds:       {"ConstraintSeeds", "A seeds constraint was violated"},
	errConstraintAssociated:  {"ConstraintAssociated", "An associated constraint was violated"},
	errConstraintTokenOwner:  {"ConstraintTokenOwner", "A token owner constraint was violated"},
	errAccountNotSigner:      {"AccountNotSigner", "The given account did not sign"},
	errAccountNotInitialized: {"AccountNotInitialized", "The program expected this account to be already initialized"},
	errInvalidPrice:          {"InvalidPrice", "The provided price must be greater than zero"},
	errInvalidTokenBalance:   {"InvalidTokenBalance", "NFT token balance must be exactly 1"},
	errInsufficientFunds:     {"InsufficientFunds", "Insufficient funds to complete purchase"},
	errInvalidOwner:          {"InvalidOwner", "Invalid listing owner"},
	errInvalidMint:           {"InvalidMint", "Invalid mint account"},
}

func anchorError(account string, number uint32) *programError {
	m := anchorMessages[number]
	line := "Program log: AnchorError occurred."
	if account != "" {
		line = "Program log: AnchorError caused by account: " + account + "."
	}
	line += fmt.Sprintf(" Error Code: %s. Error Number: %d. Error Message: %s.", m[0], number, m[1])
	return customError(number, line)
}

func (x *execution) exchange(ix *instruction) error {
	if len(ix.data) < 8 {
		return customError(101, "Program log: AnchorError occurred. Error Code: InstructionFallbackNotFound. Error Number: 101. Error Message: Fallback functions are not supported.")
	}
	disc := ix.data[:8]
	switch {
	case bytes.Equal(disc, program.InitializeDiscriminator[:]):
		x.log("Program log: Instruction: Initialize")
		return x.initialize(ix)
	case bytes.Equal(disc, program.ListForSaleDiscriminator[:]):
		x.log("Program log: Instruction: ListForSale")
		return x.listForSale(ix)
	case bytes.Equal(disc, program.BuyDiscriminator[:]):
		x.log("Program log: Instruction: BuyCarbonCredit")
		return x.buy(ix)
	case bytes.Equal(disc, program.RetireDiscriminator[:]):
		x.log("Program log: Instruction: RetireCarbonCredit")
		return x.retire(ix)
	case bytes.Equal(disc, program.CancelDiscriminator[:]):
		x.log("Program log: Instruction: CancelListing")
		return x.cancel(ix)
	default:
		return customError(101, "Program log: AnchorError occurred. Error Code: InstructionFallbackNotFound. Error Number: 101. Error Message: Fallback functions are not supported.")
	}
}

func (x *execution) requireSigner(key solanago.PublicKey, name string) error {
	if !x.isSigner(key) {
		return anchorError(name, errAccountNotSigner)
	}
	return nil
}

func (x *execution) loadExchange(addr solanago.PublicKey) (*ledger.ExchangeLayout, error) {
	var st ledger.ExchangeLayout
	if !x.loadAnchor(addr, ledger.ExchangeDiscriminator, &st) {
		return nil, anchorError("carbon_exchange", errAccountNotInitialized)
	}
	return &st, nil
}

// ownerToken checks the associated_token constraints and the amount == 1
// constraint shared by list, retire and buy.
func (x *execution) ownerToken(addr, mint, owner solanago.PublicKey, name string, checkAmount bool) (*ledger.TokenAccountLayout, error) {
	t, ok := x.loadToken(addr)
	if !ok {
		return nil, anchorError(name, errAccountNotInitialized)
	}
	if !t.Owner.Equals(owner) {
		return nil, anchorError(name, errConstraintTokenOwner)
	}
	if !t.Mint.Equals(mint) || !addr.Equals(derive.AssociatedTokenAddress(owner, mint)) {
		return nil, anchorError(name, errConstraintAssociated)
	}
	if checkAmount && t.Amount != 1 {
		return nil, anchorError(name, errInvalidTokenBalance)
	}
	return t, nil
}

func (x *execution) initialize(ix *instruction) error {
	if err := ix.need(3); err != nil {
		return err
	}
	state, authority := ix.accounts[0], ix.accounts[1]
	if err := x.requireSigner(authority, "authority"); err != nil {
		return err
	}
	want := derive.ExchangeAddress(x.programID)
	if !state.Equals(want.Address) {
		return anchorError("carbon_exchange", errConstraintSeeds)
	}
	if err := x.create(authority, state, x.programID, make([]byte, ledger.ExchangeAccountSize)); err != nil {
		return err
	}
	return x.write(state, &ledger.ExchangeLayout{
		Discriminator: ledger.ExchangeDiscriminator,
		Authority:     authority,
		Bump:          want.Bump,
	})
}

func (x *execution) listForSale(ix *instruction) error {
	if err := ix.need(7); err != nil {
		return err
	}
	var args program.ListForSaleArgs
	if err := program.Decode(ix.data, &args); err != nil {
		return &programError{code: "invalid instruction data"}
	}
	state, owner, mint, tokenAcc, listing := ix.accounts[0], ix.accounts[1], ix.accounts[2], ix.accounts[3], ix.accounts[4]

	if _, err := x.loadExchange(state); err != nil {
		return err
	}
	if err := x.requireSigner(owner, "owner"); err != nil {
		return err
	}
	if _, ok := x.loadMint(mint); !ok {
		return anchorError("mint", errAccountNotInitialized)
	}
	if _, err := x.ownerToken(tokenAcc, mint, owner, "token_account", true); err != nil {
		return err
	}
	want := derive.ListingAddress(x.programID, mint)
	if !listing.Equals(want.Address) {
		return anchorError("listing", errConstraintSeeds)
	}
	if err := x.create(owner, listing, x.programID, make([]byte, ledger.ListingAccountSize)); err != nil {
		return err
	}
	if args.Price == 0 {
		return anchorError("", errInvalidPrice)
	}
	if err := x.write(listing, &ledger.ListingLayout{
		Discriminator: ledger.ListingDiscriminator,
		Owner:         owner,
		Mint:          mint,
		Price:         args.Price,
		Bump:          want.Bump,
	}); err != nil {
		return err
	}

	x.emit(events.ListingCreated{Mint: mint, Owner: owner, Price: args.Price, Timestamp: x.now})
	return nil
}

func (x *execution) buy(ix *instruction) error {
	if err := ix.need(11); err != nil {
		return err
	}
	state, buyer, seller, mint := ix.accounts[0], ix.accounts[1], ix.accounts[2], ix.accounts[3]
	sellerToken, buyerToken, listing := ix.accounts[4], ix.accounts[5], ix.accounts[6]

	if _, err := x.loadExchange(state); err != nil {
		return err
	}
	if err := x.requireSigner(buyer, "buyer"); err != nil {
		return err
	}
	var l ledger.ListingLayout
	if !x.loadAnchor(listing, ledger.ListingDiscriminator, &l) {
		return anchorError("listing", errAccountNotInitialized)
	}
	if !seller.Equals(l.Owner) {
		return anchorError("seller", errInvalidOwner)
	}
	if !mint.Equals(l.Mint) {
		return anchorError("mint", errInvalidMint)
	}
	if !listing.Equals(derive.ListingAddress(x.programID, mint).Address) {
		return anchorError("listing", errConstraintSeeds)
	}
	st, err := x.ownerToken(sellerToken, mint, seller, "seller_token_account", true)
	if err != nil {
		return err
	}

	if !x.exists(buyerToken) {
		if !buyerToken.Equals(derive.AssociatedTokenAddress(buyer, mint)) {
			return anchorError("buyer_token_account", errConstraintAssociated)
		}
		if err := x.createTokenAccount(buyer, buyerToken, buyer, mint); err != nil {
			return err
		}
	}
	bt, err := x.ownerToken(buyerToken, mint, buyer, "buyer_token_account", false)
	if err != nil {
		return err
	}

	if acc := x.get(buyer); acc == nil || acc.Lamports < l.Price {
		return anchorError("", errInsufficientFunds)
	}
	if err := x.debit(buyer, l.Price); err != nil {
		return err
	}
	x.credit(seller, l.Price)

	st.Amount--
	bt.Amount++
	if err := x.write(sellerToken, st); err != nil {
		return err
	}
	if err := x.write(buyerToken, bt); err != nil {
		return err
	}
	x.close(listing, seller)

	x.emit(events.SaleCompleted{
		Mint:          mint,
		Seller:        seller,
		Buyer:         buyer,
		Price:         l.Price,
		Timestamp:     x.now,
		ListingClosed: true,
	})
	return nil
}

func (x *execution) retire(ix *instruction) error {
	if err := ix.need(9); err != nil {
		return err
	}
	var args program.RetireArgs
	if err := program.Decode(ix.data, &args); err != nil {
		return &programError{code: "invalid instruction data"}
	}
	state, owner, mint, tokenAcc, record := ix.accounts[0], ix.accounts[1], ix.accounts[2], ix.accounts[3], ix.accounts[4]

	ex, err := x.loadExchange(state)
	if err != nil {
		return err
	}
	if err := x.requireSigner(owner, "owner"); err != nil {
		return err
	}
	m, ok := x.loadMint(mint)
	if !ok {
		return anchorError("mint", errAccountNotInitialized)
	}
	t, err := x.ownerToken(tokenAcc, mint, owner, "token_account", true)
	if err != nil {
		return err
	}
	if !record.Equals(derive.RetirementAddress(x.programID, mint).Address) {
		return anchorError("retirement_record", errConstraintSeeds)
	}
	if err := x.create(owner, record, x.programID, make([]byte, ledger.RetirementAccountSize)); err != nil {
		return err
	}
	if err := x.write(record, &ledger.RetirementLayout{
		Discriminator:  ledger.RetirementDiscriminator,
		Owner:          owner,
		Mint:           mint,
		RetirementDate: x.now,
		Beneficiary:    args.Beneficiary,
	}); err != nil {
		return err
	}

	t.Amount = 0
	m.Supply--
	if err := x.write(tokenAcc, t); err != nil {
		return err
	}
	if err := x.write(mint, m); err != nil {
		return err
	}
	if ex.TotalCredits > 0 {
		ex.TotalCredits--
	}
	if err := x.write(state, ex); err != nil {
		return err
	}

	x.emit(events.CreditRetired{Mint: mint, Owner: owner, Beneficiary: args.Beneficiary, RetirementDate: x.now})
	return nil
}

func (x *execution) cancel(ix *instruction) error {
	if err := ix.need(6); err != nil {
		return err
	}
	owner, mint, tokenAcc, listing := ix.accounts[0], ix.accounts[1], ix.accounts[2], ix.accounts[3]

	if err := x.requireSigner(owner, "owner"); err != nil {
		return err
	}
	if _, ok := x.loadMint(mint); !ok {
		return anchorError("mint", errAccountNotInitialized)
	}
	if _, err := x.ownerToken(tokenAcc, mint, owner, "token_account", false); err != nil {
		return err
	}
	var l ledger.ListingLayout
	if !x.loadAnchor(listing, ledger.ListingDiscriminator, &l) {
		return anchorError("listing", errAccountNotInitialized)
	}
	if !listing.Equals(derive.ListingAddress(x.programID, mint).Address) {
		return anchorError("listing", errConstraintSeeds)
	}
	if !l.Owner.Equals(owner) {
		return anchorError("listing", errInvalidOwner)
	}
	x.close(listing, owner)
	return nil
}
