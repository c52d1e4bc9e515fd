package solana

import "context"

// RPCClient defines the Solana JSON-RPC surface used by the exchange.
type RPCClient interface {
	// GetAccountInfo returns the account at pubkey, or nil when it does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetProgramAccounts returns accounts owned by program matching all filters.
	GetProgramAccounts(ctx context.Context, program string, filters ...AccountFilter) ([]KeyedAccount, error)

	// GetBalance returns the lamport balance of pubkey.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetMinimumBalanceForRentExemption returns rent-exempt lamports for size bytes.
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)

	// GetLatestBlockhash returns a fresh recent blockhash.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)

	// SendTransaction broadcasts a signed wire transaction and returns its signature.
	SendTransaction(ctx context.Context, wire []byte) (string, error)

	// GetSignatureStatuses returns one entry per signature; nil entries are unknown.
	GetSignatureStatuses(ctx context.Context, signatures ...string) ([]*SignatureStatus, error)

	// GetTransaction retrieves a transaction by signature.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)
}

// WSClient defines the Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeLogs streams program logs matching the filter until ctx ends
	// or the client is closed.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}
