package txbuilder

import (
	"context"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"carbon-credit-exchange/internal/derive"
	"carbon-credit-exchange/internal/ledger"
	"carbon-credit-exchange/internal/program"
)

// Rent estimates for the Metaplex accounts created by a mint.
const (
	metadataAccountSize      = 679
	masterEditionAccountSize = 282
)

// MintRequest describes one NFT to create.
type MintRequest struct {
	Payer ledger.Signer
	// Mint is the signer of the new token address. A fresh keypair is
	// generated when nil.
	Mint ledger.Signer
	// Recipient receives the token; defaults to the payer.
	Recipient solanago.PublicKey

	Name   string
	Symbol string
	URI    string // metadata document locator
}

// MintPlan is a compiled, signed mint transaction.
type MintPlan struct {
	TokenID     solanago.PublicKey
	Transaction *solanago.Transaction
}

func (r *MintRequest) validate() error {
	fail := func(detail string) error {
		return &PreconditionError{Op: "mint", Reason: ReasonInvalidInput, Detail: detail}
	}
	switch {
	case r.Payer == nil:
		return fail("payer is required")
	case r.Name == "":
		return fail("name is required")
	case len(r.Name) > ledger.MaxNameLength:
		return fail(fmt.Sprintf("name is %d bytes, limit %d", len(r.Name), ledger.MaxNameLength))
	case len(r.Symbol) > ledger.MaxSymbolLength:
		return fail(fmt.Sprintf("symbol is %d bytes, limit %d", len(r.Symbol), ledger.MaxSymbolLength))
	case r.URI == "":
		return fail("metadata uri is required")
	case len(r.URI) > ledger.MaxURILength:
		return fail(fmt.Sprintf("uri is %d bytes, limit %d", len(r.URI), ledger.MaxURILength))
	}
	return nil
}

// MintInstructions returns the six mint instructions in execution order:
// create the mint account, initialize it with zero decimals, create the
// recipient's token account, mint one unit into it, create the metadata
// account and cap the supply with a master edition.
func MintInstructions(payer, mint, recipient solanago.PublicKey, mintRent uint64, md program.MetadataParams) []solanago.Instruction {
	ata := derive.AssociatedTokenAddress(recipient, mint)
	metadata := derive.MetadataAddress(solanago.TokenMetadataProgramID, mint).Address
	edition := derive.MasterEditionAddress(solanago.TokenMetadataProgramID, mint).Address

	return []solanago.Instruction{
		program.CreateAccount(payer, mint, mintRent, ledger.MintSize, solanago.TokenProgramID),
		program.InitializeMint2(mint, payer, 0),
		program.CreateAssociatedTokenAccount(payer, ata, recipient, mint),
		program.MintTo(mint, ata, payer, 1),
		program.CreateMetadataAccountV3(metadata, mint, payer, payer, payer, md),
		program.CreateMasterEditionV3(edition, mint, payer, payer, payer, metadata),
	}
}

// PrepareMint validates req, checks the payer can fund the new accounts
// and returns the signed transaction without submitting it.
func (b *Builder) PrepareMint(ctx context.Context, req MintRequest) (*MintPlan, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.Mint == nil {
		kp, err := ledger.NewKeypair()
		if err != nil {
			return nil, fmt.Errorf("mint: %w", err)
		}
		req.Mint = kp
	}
	payer := req.Payer.PublicKey()
	recipient := req.Recipient
	if recipient.IsZero() {
		recipient = payer
	}
	mint := req.Mint.PublicKey()

	mintRent, err := b.lc.Client.RentExemption(ctx, ledger.MintSize)
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	var need uint64 = mintRent + fee(2)
	for _, size := range []uint64{ledger.TokenAccountSize, metadataAccountSize, masterEditionAccountSize} {
		r, err := b.lc.Client.RentExemption(ctx, size)
		if err != nil {
			return nil, fmt.Errorf("mint: %w", err)
		}
		need += r
	}
	if err := b.requireBalance(ctx, "mint", payer, mint, need); err != nil {
		return nil, err
	}

	ixs := MintInstructions(payer, mint, recipient, mintRent, program.MetadataParams{
		Name:   req.Name,
		Symbol: req.Symbol,
		URI:    req.URI,
	})
	tx, err := b.compile(ctx, ixs, req.Payer, req.Mint)
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	return &MintPlan{TokenID: mint, Transaction: tx}, nil
}

// Mint creates the NFT atomically and waits for confirmation. On a
// confirmation timeout the result carries StatusUnknown together with
// ledger.ErrConfirmationTimeout; the token may still appear.
func (b *Builder) Mint(ctx context.Context, req MintRequest) (res *Result, err error) {
	start := time.Now()
	defer func() { b.record("mint", start, res, err) }()

	plan, err := b.PrepareMint(ctx, req)
	if err != nil {
		return nil, err
	}

	sig, err := b.send(ctx, "mint", plan.Transaction)
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	res = &Result{TokenID: plan.TokenID, Signature: sig, Status: ledger.StatusPending}

	res.Status, err = b.lc.AwaitConfirmation(ctx, sig)
	if err != nil {
		return res, fmt.Errorf("mint %s: %w", plan.TokenID, err)
	}
	b.logger.Info("credit minted",
		zap.String("mint", plan.TokenID.String()),
		zap.String("signature", sig.String()))
	return res, nil
}
