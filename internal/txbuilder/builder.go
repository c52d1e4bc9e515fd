// Package txbuilder assembles, signs and submits the exchange workflows:
// mint, list, buy, retire, cancel and exchange initialization. Every
// workflow checks its preconditions with reads before it spends a
// transaction and never retries a submission.
package txbuilder

import (
	"context"
	"errors"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"carbon-credit-exchange/internal/derive"
	"carbon-credit-exchange/internal/ledger"
	"carbon-credit-exchange/internal/observability"
	"carbon-credit-exchange/internal/program"
)

// Result is the outcome of a submitted workflow.
type Result struct {
	TokenID   solanago.PublicKey
	Signature solanago.Signature
	Status    ledger.Status
}

// Builder runs the workflows against one ledger context.
type Builder struct {
	lc       *ledger.Context
	exchange program.Exchange
	logger   *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// New creates a Builder bound to lc.
func New(lc *ledger.Context, opts ...Option) *Builder {
	b := &Builder{
		lc: lc,
		exchange: program.Exchange{
			ProgramID: lc.ProgramID,
		},
		logger: lc.Logger(),
	}
	b.exchange.State = b.exchangeAddress()
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// submit compiles ixs into a transaction paid by payer, signs it with payer
// and extra, broadcasts it once and waits for confirmation. A fresh
// blockhash is fetched for every call.
func (b *Builder) submit(ctx context.Context, op string, ixs []solanago.Instruction, payer ledger.Signer, extra ...ledger.Signer) (solanago.Signature, ledger.Status, error) {
	tx, err := b.compile(ctx, ixs, payer, extra...)
	if err != nil {
		return solanago.Signature{}, ledger.StatusFailed, fmt.Errorf("%s: %w", op, err)
	}

	sig, err := b.send(ctx, op, tx)
	if err != nil {
		return solanago.Signature{}, ledger.StatusFailed, fmt.Errorf("%s: %w", op, err)
	}

	status, err := b.lc.AwaitConfirmation(ctx, sig)
	if err != nil {
		return sig, status, fmt.Errorf("%s: %w", op, err)
	}
	return sig, status, nil
}

// send broadcasts tx once. An unknown outcome is not an error: the
// signature is returned so the caller resolves it by confirmation.
func (b *Builder) send(ctx context.Context, op string, tx *solanago.Transaction) (solanago.Signature, error) {
	sig, err := b.lc.Client.Submit(ctx, tx)
	switch {
	case err == nil:
		b.logger.Info("transaction submitted", zap.String("op", op), zap.String("signature", sig.String()))
		return sig, nil
	case errors.Is(err, ledger.ErrSubmissionUnknown) && !sig.IsZero():
		b.logger.Warn("submission outcome unknown, awaiting confirmation",
			zap.String("op", op),
			zap.String("signature", sig.String()),
			zap.Error(err))
		return sig, nil
	default:
		b.logger.Warn("submission rejected", zap.String("op", op), zap.Error(err))
		return solanago.Signature{}, err
	}
}

// compile builds and signs the transaction without submitting it.
func (b *Builder) compile(ctx context.Context, ixs []solanago.Instruction, payer ledger.Signer, extra ...ledger.Signer) (*solanago.Transaction, error) {
	if err := b.lc.Err(); err != nil {
		return nil, err
	}
	blockhash, err := b.lc.Client.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := solanago.NewTransaction(ixs, blockhash, solanago.TransactionPayer(payer.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("compile transaction: %w", err)
	}
	signers := append([]ledger.Signer{payer}, extra...)
	if err := ledger.SignTransaction(tx, signers...); err != nil {
		return nil, err
	}
	return tx, nil
}

func (b *Builder) record(op string, start time.Time, res *Result, err error) {
	var pe *PreconditionError
	outcome := "error"
	switch {
	case errors.As(err, &pe):
		outcome = "precondition"
	case res != nil:
		outcome = res.Status.String()
	}
	observability.RecordWorkflow(op, outcome, time.Since(start).Seconds())
}

func (b *Builder) exchangeAddress() solanago.PublicKey {
	return derive.ExchangeAddress(b.lc.ProgramID).Address
}

// fee is the signature fee estimate used in balance pre-checks.
func fee(signatures int) uint64 {
	return 5000 * uint64(signatures)
}

func (b *Builder) requireBalance(ctx context.Context, op string, who solanago.PublicKey, mint solanago.PublicKey, need uint64) error {
	have, err := b.lc.Client.Balance(ctx, who)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if have < need {
		return &PreconditionError{
			Op:      op,
			Reason:  ReasonInsufficientBalance,
			Mint:    mint,
			Account: who,
			Detail:  fmt.Sprintf("%s holds %d lamports, needs at least %d", who, have, need),
		}
	}
	return nil
}
