// Package ledger is the session layer between the exchange and a Solana
// cluster: account reads, transaction submission and confirmation, decoding
// of the exchange and token account layouts, and the signing identity.
package ledger

import (
	"context"

	solanago "github.com/gagliardetto/solana-go"
)

// Account is raw account state as returned by the cluster.
type Account struct {
	Address  solanago.PublicKey
	Owner    solanago.PublicKey
	Lamports uint64
	Data     []byte
}

// Status is the observed state of a submitted transaction.
type Status int

const (
	// StatusPending means the cluster has not reported the signature yet.
	StatusPending Status = iota
	// StatusConfirmed means the transaction landed without error.
	StatusConfirmed
	// StatusFailed means the transaction landed and its execution failed.
	StatusFailed
	// StatusUnknown means the confirmation wait ran out; the transaction
	// may still land.
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	case StatusUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Client is the cluster transport. Implementations must be safe for
// concurrent use.
type Client interface {
	// FetchAccount returns the account at addr, or nil when it does not exist.
	FetchAccount(ctx context.Context, addr solanago.PublicKey) (*Account, error)

	// FetchProgramAccounts returns accounts owned by program whose data starts
	// with prefix and, when size > 0, has exactly size bytes.
	FetchProgramAccounts(ctx context.Context, program solanago.PublicKey, prefix []byte, size int) ([]*Account, error)

	// Balance returns the lamport balance of addr.
	Balance(ctx context.Context, addr solanago.PublicKey) (uint64, error)

	// RentExemption returns the rent-exempt minimum for an account of size bytes.
	RentExemption(ctx context.Context, size uint64) (uint64, error)

	// LatestBlockhash returns a fresh recent blockhash.
	LatestBlockhash(ctx context.Context) (solanago.Hash, error)

	// Submit broadcasts a fully signed transaction once. A rejection is
	// returned as *SubmissionError; an unknown outcome wraps
	// ErrSubmissionUnknown together with the transaction's signature.
	Submit(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error)

	// Confirm polls the status of sig once. StatusFailed is accompanied by a
	// *SubmissionError carrying the execution logs.
	Confirm(ctx context.Context, sig solanago.Signature) (Status, error)
}
