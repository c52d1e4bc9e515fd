package program

import solanago "github.com/gagliardetto/solana-go"

// Exchange instruction names as declared by the program.
const (
	IxInitialize  = "initialize"
	IxListForSale = "list_for_sale"
	IxBuy         = "buy_carbon_credit"
	IxRetire      = "retire_carbon_credit"
	IxCancel      = "cancel_listing"
)

var (
	InitializeDiscriminator  = InstructionDiscriminator(IxInitialize)
	ListForSaleDiscriminator = InstructionDiscriminator(IxListForSale)
	BuyDiscriminator         = InstructionDiscriminator(IxBuy)
	RetireDiscriminator      = InstructionDiscriminator(IxRetire)
	CancelDiscriminator      = InstructionDiscriminator(IxCancel)
)

// ListForSaleArgs is the list_for_sale payload.
type ListForSaleArgs struct {
	Discriminator Discriminator
	Price         uint64
}

// RetireArgs is the retire_carbon_credit payload.
type RetireArgs struct {
	Discriminator Discriminator
	Beneficiary   solanago.PublicKey
}

// Exchange builds instructions for one deployment of the exchange program.
type Exchange struct {
	ProgramID solanago.PublicKey
	State     solanago.PublicKey // the exchange singleton account
}

// Initialize creates the exchange singleton with authority.
func (e Exchange) Initialize(authority solanago.PublicKey) solanago.Instruction {
	return solanago.NewInstruction(
		e.ProgramID,
		solanago.AccountMetaSlice{
			meta(e.State, true, false),
			meta(authority, true, true),
			meta(solanago.SystemProgramID, false, false),
		},
		InitializeDiscriminator[:],
	)
}

// ListForSale opens listing for mint at price lamports.
func (e Exchange) ListForSale(owner, mint, ownerToken, listing solanago.PublicKey, price uint64) solanago.Instruction {
	return solanago.NewInstruction(
		e.ProgramID,
		solanago.AccountMetaSlice{
			meta(e.State, true, false),
			meta(owner, true, true),
			meta(mint, false, false),
			meta(ownerToken, true, false),
			meta(listing, true, false),
			meta(solanago.TokenProgramID, false, false),
			meta(solanago.SystemProgramID, false, false),
		},
		encode(&ListForSaleArgs{Discriminator: ListForSaleDiscriminator, Price: price}),
	)
}

// BuyAccounts are the accounts of a purchase.
type BuyAccounts struct {
	Buyer       solanago.PublicKey
	Seller      solanago.PublicKey
	Mint        solanago.PublicKey
	SellerToken solanago.PublicKey
	BuyerToken  solanago.PublicKey
	Listing     solanago.PublicKey
}

// Buy pays the seller, moves the token to the buyer and closes the listing.
func (e Exchange) Buy(a BuyAccounts) solanago.Instruction {
	return solanago.NewInstruction(
		e.ProgramID,
		solanago.AccountMetaSlice{
			meta(e.State, true, false),
			meta(a.Buyer, true, true),
			meta(a.Seller, true, false),
			meta(a.Mint, false, false),
			meta(a.SellerToken, true, false),
			meta(a.BuyerToken, true, false),
			meta(a.Listing, true, false),
			meta(solanago.TokenProgramID, false, false),
			meta(solanago.SPLAssociatedTokenAccountProgramID, false, false),
			meta(solanago.SystemProgramID, false, false),
			meta(solanago.SysVarRentPubkey, false, false),
		},
		BuyDiscriminator[:],
	)
}

// Retire writes the retirement record and burns the token.
func (e Exchange) Retire(owner, mint, ownerToken, record, beneficiary solanago.PublicKey) solanago.Instruction {
	return solanago.NewInstruction(
		e.ProgramID,
		solanago.AccountMetaSlice{
			meta(e.State, true, false),
			meta(owner, true, true),
			meta(mint, true, false),
			meta(ownerToken, true, false),
			meta(record, true, false),
			meta(solanago.TokenProgramID, false, false),
			meta(solanago.SPLAssociatedTokenAccountProgramID, false, false),
			meta(solanago.SystemProgramID, false, false),
			meta(solanago.SysVarRentPubkey, false, false),
		},
		encode(&RetireArgs{Discriminator: RetireDiscriminator, Beneficiary: beneficiary}),
	)
}

// Cancel closes the owner's listing and refunds its rent.
func (e Exchange) Cancel(owner, mint, ownerToken, listing solanago.PublicKey) solanago.Instruction {
	return solanago.NewInstruction(
		e.ProgramID,
		solanago.AccountMetaSlice{
			meta(owner, true, true),
			meta(mint, false, false),
			meta(ownerToken, true, false),
			meta(listing, true, false),
			meta(solanago.TokenProgramID, false, false),
			meta(solanago.SystemProgramID, false, false),
		},
		CancelDiscriminator[:],
	)
}
