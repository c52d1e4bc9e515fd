package ledger

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"carbon-credit-exchange/internal/observability"
	"carbon-credit-exchange/internal/solana"
)

// RPCClient adapts a solana.RPCClient to Client.
type RPCClient struct {
	rpc solana.RPCClient
}

var _ Client = (*RPCClient)(nil)

// NewRPCClient wraps rpc.
func NewRPCClient(rpc solana.RPCClient) *RPCClient {
	return &RPCClient{rpc: rpc}
}

// FetchAccount returns nil when the account does not exist.
func (c *RPCClient) FetchAccount(ctx context.Context, addr solanago.PublicKey) (*Account, error) {
	start := time.Now()
	info, err := c.rpc.GetAccountInfo(ctx, addr.String())
	observe("getAccountInfo", start, err)
	if err != nil {
		return nil, fmt.Errorf("fetch account %s: %w", addr, err)
	}
	if info == nil {
		return nil, nil
	}
	return toAccount(addr, info)
}

// FetchProgramAccounts lists accounts of program starting with prefix.
func (c *RPCClient) FetchProgramAccounts(ctx context.Context, program solanago.PublicKey, prefix []byte, size int) ([]*Account, error) {
	var filters []solana.AccountFilter
	if size > 0 {
		filters = append(filters, solana.AccountFilter{DataSize: uint64(size)})
	}
	if len(prefix) > 0 {
		filters = append(filters, solana.AccountFilter{Memcmp: &solana.Memcmp{Offset: 0, Bytes: base58.Encode(prefix)}})
	}

	start := time.Now()
	keyed, err := c.rpc.GetProgramAccounts(ctx, program.String(), filters...)
	observe("getProgramAccounts", start, err)
	if err != nil {
		return nil, fmt.Errorf("fetch program accounts %s: %w", program, err)
	}

	out := make([]*Account, 0, len(keyed))
	for _, k := range keyed {
		addr, err := solanago.PublicKeyFromBase58(k.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("program account %q: %w", k.Pubkey, err)
		}
		acc, err := toAccount(addr, &k.Account)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, nil
}

func toAccount(addr solanago.PublicKey, info *solana.AccountInfo) (*Account, error) {
	data, err := base64.StdEncoding.DecodeString(info.Data)
	if err != nil {
		return nil, fmt.Errorf("account %s: decode data: %w", addr, err)
	}
	owner, err := solanago.PublicKeyFromBase58(info.Owner)
	if err != nil {
		return nil, fmt.Errorf("account %s: owner %q: %w", addr, info.Owner, err)
	}
	return &Account{
		Address:  addr,
		Owner:    owner,
		Lamports: info.Lamports,
		Data:     data,
	}, nil
}

// Balance returns the lamport balance of addr.
func (c *RPCClient) Balance(ctx context.Context, addr solanago.PublicKey) (uint64, error) {
	start := time.Now()
	b, err := c.rpc.GetBalance(ctx, addr.String())
	observe("getBalance", start, err)
	if err != nil {
		return 0, fmt.Errorf("balance %s: %w", addr, err)
	}
	return b, nil
}

// RentExemption returns the rent-exempt minimum for size bytes.
func (c *RPCClient) RentExemption(ctx context.Context, size uint64) (uint64, error) {
	start := time.Now()
	r, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, size)
	observe("getMinimumBalanceForRentExemption", start, err)
	if err != nil {
		return 0, fmt.Errorf("rent exemption for %d bytes: %w", size, err)
	}
	return r, nil
}

// LatestBlockhash returns a fresh blockhash.
func (c *RPCClient) LatestBlockhash(ctx context.Context) (solanago.Hash, error) {
	start := time.Now()
	bh, err := c.rpc.GetLatestBlockhash(ctx)
	observe("getLatestBlockhash", start, err)
	if err != nil {
		return solanago.Hash{}, fmt.Errorf("latest blockhash: %w", err)
	}
	h, err := solanago.HashFromBase58(bh.Blockhash)
	if err != nil {
		return solanago.Hash{}, fmt.Errorf("latest blockhash %q: %w", bh.Blockhash, err)
	}
	return h, nil
}

// Submit serializes and broadcasts tx once. The returned signature is
// always tx's first signature. Preflight rejections become
// *SubmissionError with the simulation logs. A transport failure or an
// "already processed" reply wraps ErrSubmissionUnknown.
func (c *RPCClient) Submit(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error) {
	if len(tx.Signatures) == 0 {
		return solanago.Signature{}, fmt.Errorf("send transaction: unsigned")
	}
	sig := tx.Signatures[0]

	wire, err := tx.MarshalBinary()
	if err != nil {
		return sig, fmt.Errorf("serialize transaction: %w", err)
	}

	start := time.Now()
	_, err = c.rpc.SendTransaction(ctx, wire)
	observe("sendTransaction", start, err)
	if err != nil {
		var rpcErr *solana.RPCError
		if errors.As(err, &rpcErr) && !alreadyProcessed(rpcErr) {
			return sig, &SubmissionError{
				Op:   "send",
				Code: rpcErr.Code,
				Logs: rpcErr.Logs(),
				Err:  err,
			}
		}
		return sig, fmt.Errorf("send transaction %s: %w: %w", sig, ErrSubmissionUnknown, err)
	}
	return sig, nil
}

// alreadyProcessed reports whether the node rejected a duplicate of a
// transaction it has already seen.
func alreadyProcessed(err *solana.RPCError) bool {
	return strings.Contains(strings.ToLower(err.Message), "already been processed")
}

// Confirm polls the signature status once. A landed failure fetches the
// transaction logs for the returned *SubmissionError.
func (c *RPCClient) Confirm(ctx context.Context, sig solanago.Signature) (Status, error) {
	start := time.Now()
	statuses, err := c.rpc.GetSignatureStatuses(ctx, sig.String())
	observe("getSignatureStatuses", start, err)
	if err != nil {
		return StatusPending, fmt.Errorf("signature status %s: %w", sig, err)
	}
	if len(statuses) == 0 || statuses[0] == nil {
		return StatusPending, nil
	}

	st := statuses[0]
	if st.Err != nil {
		subErr := &SubmissionError{
			Op:        "execute",
			Signature: sig,
			Err:       fmt.Errorf("%v", st.Err),
		}
		if tx, err := c.rpc.GetTransaction(ctx, sig.String()); err == nil && tx != nil && tx.Meta != nil {
			subErr.Logs = tx.Meta.LogMessages
		}
		return StatusFailed, subErr
	}

	switch st.ConfirmationStatus {
	case solana.CommitmentConfirmed, solana.CommitmentFinalized:
		return StatusConfirmed, nil
	default:
		return StatusPending, nil
	}
}

func observe(method string, start time.Time, err error) {
	observability.RecordRPCLatency(method, time.Since(start).Seconds(), err)
}
