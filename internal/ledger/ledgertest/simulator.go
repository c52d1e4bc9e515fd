// Package ledgertest provides an in-memory cluster for tests. The simulator
// executes the subset of the system, SPL token, associated token, Metaplex
// and exchange programs the exchange uses, one transaction at a time and
// all-or-nothing, and reports failures with program logs shaped like the
// ones a real validator returns.
package ledgertest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"carbon-credit-exchange/internal/ledger"
)

// FeePerSignature is charged to the fee payer of every landed transaction.
const FeePerSignature = 5000

// Simulator implements ledger.Client.
type Simulator struct {
	programID solanago.PublicKey
	now       func() time.Time

	mu         sync.Mutex
	accounts   map[solanago.PublicKey]*ledger.Account
	blockhashs map[solanago.Hash]bool
	results    map[solanago.Signature]*result
	submitted  []*solanago.Transaction
	slot       uint64
	hold       bool
	submitErr  error
}

type result struct {
	slot uint64
	logs []string
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithClock sets the clock used for on-chain timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		s.now = now
	}
}

// New creates an empty cluster with the exchange program deployed at
// programID.
func New(programID solanago.PublicKey, opts ...Option) *Simulator {
	s := &Simulator{
		programID:  programID,
		now:        time.Now,
		accounts:   make(map[solanago.PublicKey]*ledger.Account),
		blockhashs: make(map[solanago.Hash]bool),
		results:    make(map[solanago.Signature]*result),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ledger.Client = (*Simulator)(nil)

// Airdrop credits lamports to addr, creating a system account if needed.
func (s *Simulator) Airdrop(addr solanago.PublicKey, lamports uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[addr]
	if !ok {
		acc = &ledger.Account{Address: addr, Owner: solanago.SystemProgramID}
		s.accounts[addr] = acc
	}
	acc.Lamports += lamports
}

// SetAccount installs acc as is.
func (s *Simulator) SetAccount(acc *ledger.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acc.Address] = cloneAccount(acc)
}

// Account returns a copy of the account at addr, or nil.
func (s *Simulator) Account(addr solanago.PublicKey) *ledger.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[addr]; ok {
		return cloneAccount(acc)
	}
	return nil
}

// Submitted returns every transaction passed to Submit, including rejected
// ones.
func (s *Simulator) Submitted() []*solanago.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*solanago.Transaction, len(s.submitted))
	copy(out, s.submitted)
	return out
}

// SubmitCount returns the number of Submit calls.
func (s *Simulator) SubmitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.submitted)
}

// Logs returns the logs of a landed transaction.
func (s *Simulator) Logs(sig solanago.Signature) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.results[sig]; ok {
		return append([]string(nil), r.logs...)
	}
	return nil
}

// HoldConfirmations makes Confirm report every signature as pending, as if
// the cluster were slow to confirm.
func (s *Simulator) HoldConfirmations(hold bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = hold
}

// FailSubmissions makes Submit return err without executing anything.
// A nil err restores normal behaviour.
func (s *Simulator) FailSubmissions(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitErr = err
}

// FetchAccount implements ledger.Client.
func (s *Simulator) FetchAccount(ctx context.Context, addr solanago.PublicKey) (*ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Account(addr), nil
}

// FetchProgramAccounts implements ledger.Client.
func (s *Simulator) FetchProgramAccounts(ctx context.Context, program solanago.PublicKey, prefix []byte, size int) ([]*ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ledger.Account
	for _, acc := range s.accounts {
		if !acc.Owner.Equals(program) {
			continue
		}
		if size > 0 && len(acc.Data) != size {
			continue
		}
		if !bytes.HasPrefix(acc.Data, prefix) {
			continue
		}
		out = append(out, cloneAccount(acc))
	}
	return out, nil
}

// Balance implements ledger.Client.
func (s *Simulator) Balance(ctx context.Context, addr solanago.PublicKey) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if acc := s.Account(addr); acc != nil {
		return acc.Lamports, nil
	}
	return 0, nil
}

// RentExemption implements ledger.Client with the mainnet rent parameters.
func (s *Simulator) RentExemption(ctx context.Context, size uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return rentExempt(size), nil
}

func rentExempt(size uint64) uint64 {
	return (128 + size) * 3480 * 2
}

// LatestBlockhash implements ledger.Client. Every call issues a new hash.
func (s *Simulator) LatestBlockhash(ctx context.Context) (solanago.Hash, error) {
	if err := ctx.Err(); err != nil {
		return solanago.Hash{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slot++
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], s.slot)
	h := solanago.Hash(sha256.Sum256(seed[:]))
	s.blockhashs[h] = true
	return h, nil
}

// Submit implements ledger.Client. Failed execution is reported the way a
// failed preflight simulation is: a *ledger.SubmissionError with logs and
// no state change.
func (s *Simulator) Submit(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solanago.Signature{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, tx)

	if s.submitErr != nil {
		return solanago.Signature{}, s.submitErr
	}
	if len(tx.Signatures) == 0 {
		return solanago.Signature{}, reject(-32602, "invalid transaction: no signatures", nil)
	}
	if !s.blockhashs[tx.Message.RecentBlockhash] {
		return solanago.Signature{}, reject(-32002, "Transaction simulation failed: Blockhash not found", nil)
	}
	if err := verifySignatures(tx); err != nil {
		return solanago.Signature{}, reject(-32003, "Transaction signature verification failure", nil)
	}
	sig := tx.Signatures[0]
	if _, dup := s.results[sig]; dup {
		return solanago.Signature{}, reject(-32002, "Transaction simulation failed: This transaction has already been processed", nil)
	}

	x := newExecution(s, tx)
	if err := x.run(); err != nil {
		return solanago.Signature{}, reject(-32002, "Transaction simulation failed: "+err.Error(), x.logs)
	}

	s.accounts = x.accounts
	s.slot++
	s.results[sig] = &result{slot: s.slot, logs: x.logs}
	return sig, nil
}

// Confirm implements ledger.Client.
func (s *Simulator) Confirm(ctx context.Context, sig solanago.Signature) (ledger.Status, error) {
	if err := ctx.Err(); err != nil {
		return ledger.StatusPending, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hold {
		return ledger.StatusPending, nil
	}
	if _, ok := s.results[sig]; !ok {
		return ledger.StatusPending, nil
	}
	return ledger.StatusConfirmed, nil
}

func reject(code int, msg string, logs []string) error {
	return &ledger.SubmissionError{
		Op:   "send",
		Code: code,
		Logs: logs,
		Err:  fmt.Errorf("%s", msg),
	}
}

func verifySignatures(tx *solanago.Transaction) error {
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return err
	}
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) != required || len(tx.Message.AccountKeys) < required {
		return fmt.Errorf("want %d signatures, have %d", required, len(tx.Signatures))
	}
	for i := 0; i < required; i++ {
		if !tx.Signatures[i].Verify(tx.Message.AccountKeys[i], msg) {
			return fmt.Errorf("bad signature for %s", tx.Message.AccountKeys[i])
		}
	}
	return nil
}

func cloneAccount(acc *ledger.Account) *ledger.Account {
	c := *acc
	c.Data = append([]byte(nil), acc.Data...)
	return &c
}
