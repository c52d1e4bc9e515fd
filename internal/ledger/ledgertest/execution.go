package ledgertest

import (
	"bytes"
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"

	"carbon-credit-exchange/internal/derive"
	"carbon-credit-exchange/internal/events"
	"carbon-credit-exchange/internal/ledger"
	"carbon-credit-exchange/internal/program"
)

// execution runs one transaction against a private copy of the account set.
type execution struct {
	programID solanago.PublicKey
	tx        *solanago.Transaction
	accounts  map[solanago.PublicKey]*ledger.Account
	logs      []string
	now       int64
}

type instruction struct {
	program  solanago.PublicKey
	accounts []solanago.PublicKey
	data     []byte
}

// programError is a failed instruction: its status code and the log lines
// the program printed before failing.
type programError struct {
	code string
	logs []string
}

func (e *programError) Error() string {
	return e.code
}

func customError(code uint32, logs ...string) *programError {
	return &programError{code: fmt.Sprintf("custom program error: 0x%x", code), logs: logs}
}

func newExecution(s *Simulator, tx *solanago.Transaction) *execution {
	accounts := make(map[solanago.PublicKey]*ledger.Account, len(s.accounts))
	for k, v := range s.accounts {
		accounts[k] = cloneAccount(v)
	}
	return &execution{
		programID: s.programID,
		tx:        tx,
		accounts:  accounts,
		now:       s.now().Unix(),
	}
}

func (x *execution) run() error {
	payer := x.tx.Message.AccountKeys[0]
	fee := FeePerSignature * uint64(x.tx.Message.Header.NumRequiredSignatures)
	if acc := x.get(payer); acc == nil || acc.Lamports < fee {
		return errors.New("Attempt to debit an account but found no record of a prior credit.")
	}
	x.accounts[payer].Lamports -= fee

	for i, ci := range x.tx.Message.Instructions {
		ix, err := x.resolve(ci)
		if err != nil {
			return fmt.Errorf("Error processing Instruction %d: %w", i, err)
		}
		x.log("Program %s invoke [1]", ix.program)
		if err := x.dispatch(ix); err != nil {
			var pe *programError
			if errors.As(err, &pe) {
				x.logs = append(x.logs, pe.logs...)
			}
			x.log("Program %s failed: %v", ix.program, err)
			return fmt.Errorf("Error processing Instruction %d: %w", i, err)
		}
		x.log("Program %s success", ix.program)
	}
	return nil
}

func (x *execution) resolve(ci solanago.CompiledInstruction) (*instruction, error) {
	keys := x.tx.Message.AccountKeys
	if int(ci.ProgramIDIndex) >= len(keys) {
		return nil, errors.New("invalid program id index")
	}
	ix := &instruction{program: keys[ci.ProgramIDIndex], data: ci.Data}
	for _, idx := range ci.Accounts {
		if int(idx) >= len(keys) {
			return nil, errors.New("invalid account index")
		}
		ix.accounts = append(ix.accounts, keys[idx])
	}
	return ix, nil
}

func (x *execution) dispatch(ix *instruction) error {
	switch {
	case ix.program.Equals(solanago.SystemProgramID):
		return x.system(ix)
	case ix.program.Equals(solanago.TokenProgramID):
		return x.token(ix)
	case ix.program.Equals(solanago.SPLAssociatedTokenAccountProgramID):
		return x.associatedToken(ix)
	case ix.program.Equals(solanago.TokenMetadataProgramID):
		return x.metadata(ix)
	case ix.program.Equals(x.programID):
		return x.exchange(ix)
	default:
		return &programError{code: "invalid program for execution"}
	}
}

func (x *execution) log(format string, args ...interface{}) {
	x.logs = append(x.logs, fmt.Sprintf(format, args...))
}

func (x *execution) emit(ev events.Event) {
	line, err := events.Encode(ev)
	if err == nil {
		x.logs = append(x.logs, line)
	}
}

func (x *execution) isSigner(key solanago.PublicKey) bool {
	n := int(x.tx.Message.Header.NumRequiredSignatures)
	for _, k := range x.tx.Message.AccountKeys[:n] {
		if k.Equals(key) {
			return true
		}
	}
	return false
}

func (ix *instruction) need(n int) error {
	if len(ix.accounts) < n {
		return &programError{code: "insufficient account keys for instruction"}
	}
	return nil
}

// Account helpers.

func (x *execution) get(addr solanago.PublicKey) *ledger.Account {
	acc, ok := x.accounts[addr]
	if !ok {
		return nil
	}
	return acc
}

func (x *execution) exists(addr solanago.PublicKey) bool {
	acc := x.get(addr)
	return acc != nil && (len(acc.Data) > 0 || !acc.Owner.Equals(solanago.SystemProgramID))
}

func (x *execution) debit(addr solanago.PublicKey, amount uint64) error {
	acc := x.get(addr)
	var have uint64
	if acc != nil {
		have = acc.Lamports
	}
	if have < amount {
		return customError(1, fmt.Sprintf("Transfer: insufficient lamports %d, need %d", have, amount))
	}
	acc.Lamports -= amount
	return nil
}

func (x *execution) credit(addr solanago.PublicKey, amount uint64) {
	acc := x.get(addr)
	if acc == nil {
		acc = &ledger.Account{Address: addr, Owner: solanago.SystemProgramID}
		x.accounts[addr] = acc
	}
	acc.Lamports += amount
}

// create allocates addr with data, owned by owner and funded rent-exempt by
// payer.
func (x *execution) create(payer, addr, owner solanago.PublicKey, data []byte) error {
	if x.exists(addr) {
		return customError(0, fmt.Sprintf("Allocate: account Address { address: %s, base: None } already in use", addr))
	}
	if err := x.debit(payer, rentExempt(uint64(len(data)))); err != nil {
		return err
	}
	x.credit(addr, rentExempt(uint64(len(data))))
	acc := x.accounts[addr]
	acc.Owner = owner
	acc.Data = data
	return nil
}

func (x *execution) close(addr, dest solanago.PublicKey) {
	if acc := x.get(addr); acc != nil {
		x.credit(dest, acc.Lamports)
		delete(x.accounts, addr)
	}
}

func (x *execution) write(addr solanago.PublicKey, layout interface{}) error {
	data, err := ledger.EncodeAccount(layout)
	if err != nil {
		return &programError{code: "account data serialization failed"}
	}
	acc := x.get(addr)
	if acc == nil {
		return &programError{code: "account not found"}
	}
	copy(acc.Data, data)
	return nil
}

func (x *execution) loadMint(addr solanago.PublicKey) (*ledger.MintLayout, bool) {
	acc := x.get(addr)
	if acc == nil || !acc.Owner.Equals(solanago.TokenProgramID) {
		return nil, false
	}
	m, err := ledger.DecodeMint(acc)
	if err != nil || !m.IsInitialized {
		return nil, false
	}
	return m, true
}

func (x *execution) loadToken(addr solanago.PublicKey) (*ledger.TokenAccountLayout, bool) {
	acc := x.get(addr)
	if acc == nil || !acc.Owner.Equals(solanago.TokenProgramID) || len(acc.Data) != ledger.TokenAccountSize {
		return nil, false
	}
	t, err := ledger.DecodeTokenAccount(acc)
	if err != nil {
		return nil, false
	}
	return t, true
}

func (x *execution) loadAnchor(addr solanago.PublicKey, disc program.Discriminator, v interface{}) bool {
	acc := x.get(addr)
	if acc == nil || !acc.Owner.Equals(x.programID) || len(acc.Data) < 8 {
		return false
	}
	if !bytes.Equal(acc.Data[:8], disc[:]) {
		return false
	}
	return program.Decode(acc.Data, v) == nil
}

// System program.

func (x *execution) system(ix *instruction) error {
	if len(ix.data) < 4 {
		return &programError{code: "invalid instruction data"}
	}
	switch op := leUint32(ix.data); op {
	case program.SystemCreateAccount:
		var args program.CreateAccountArgs
		if err := program.Decode(ix.data, &args); err != nil {
			return &programError{code: "invalid instruction data"}
		}
		if err := ix.need(2); err != nil {
			return err
		}
		from, to := ix.accounts[0], ix.accounts[1]
		if !x.isSigner(from) || !x.isSigner(to) {
			return &programError{code: "missing required signature for instruction"}
		}
		if x.exists(to) {
			return customError(0, fmt.Sprintf("Create Account: account Address { address: %s, base: None } already in use", to))
		}
		if err := x.debit(from, args.Lamports); err != nil {
			return err
		}
		x.credit(to, args.Lamports)
		acc := x.accounts[to]
		acc.Owner = args.Owner
		acc.Data = make([]byte, args.Space)
		return nil
	default:
		return &programError{code: fmt.Sprintf("unsupported system instruction %d", op)}
	}
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// SPL token program.

func (x *execution) token(ix *instruction) error {
	if len(ix.data) == 0 {
		return &programError{code: "invalid instruction data"}
	}
	switch ix.data[0] {
	case program.TokenInitializeMint2:
		var args program.InitializeMint2Args
		if err := program.Decode(ix.data, &args); err != nil {
			return &programError{code: "invalid instruction data"}
		}
		if err := ix.need(1); err != nil {
			return err
		}
		acc := x.get(ix.accounts[0])
		if acc == nil || !acc.Owner.Equals(solanago.TokenProgramID) || len(acc.Data) != ledger.MintSize {
			return customError(0xd, "Program log: Error: InvalidAccountData")
		}
		if _, ok := x.loadMint(ix.accounts[0]); ok {
			return customError(6, "Program log: Error: account or token already in use")
		}
		return x.write(ix.accounts[0], &ledger.MintLayout{
			MintAuthorityOption:   1,
			MintAuthority:         args.MintAuthority,
			Decimals:              args.Decimals,
			IsInitialized:         true,
			FreezeAuthorityOption: uint32(args.FreezeOption),
			FreezeAuthority:       args.FreezeAuthority,
		})

	case program.TokenMintTo:
		var args program.MintToArgs
		if err := program.Decode(ix.data, &args); err != nil {
			return &programError{code: "invalid instruction data"}
		}
		if err := ix.need(3); err != nil {
			return err
		}
		mintAddr, dest, authority := ix.accounts[0], ix.accounts[1], ix.accounts[2]
		m, ok := x.loadMint(mintAddr)
		if !ok {
			return customError(2, "Program log: Error: Invalid Mint")
		}
		if m.MintAuthorityOption == 0 || !m.MintAuthority.Equals(authority) || !x.isSigner(authority) {
			return customError(4, "Program log: Error: owner does not match")
		}
		t, ok := x.loadToken(dest)
		if !ok || !t.Mint.Equals(mintAddr) {
			return customError(3, "Program log: Error: Account not associated with this Mint")
		}
		t.Amount += args.Amount
		m.Supply += args.Amount
		if err := x.write(dest, t); err != nil {
			return err
		}
		return x.write(mintAddr, m)

	default:
		return &programError{code: fmt.Sprintf("unsupported token instruction %d", ix.data[0])}
	}
}

// Associated token account program.

func (x *execution) associatedToken(ix *instruction) error {
	if err := ix.need(4); err != nil {
		return err
	}
	payer, ata, wallet, mint := ix.accounts[0], ix.accounts[1], ix.accounts[2], ix.accounts[3]
	idempotent := len(ix.data) > 0 && ix.data[0] == 1

	if !ata.Equals(derive.AssociatedTokenAddress(wallet, mint)) {
		return &programError{code: "invalid seeds", logs: []string{"Program log: Associated address does not match seed derivation"}}
	}
	if _, ok := x.loadMint(mint); !ok {
		return customError(2, "Program log: Error: Invalid Mint")
	}
	if x.exists(ata) {
		if idempotent {
			return nil
		}
		return customError(0, fmt.Sprintf("Allocate: account Address { address: %s, base: None } already in use", ata))
	}
	return x.createTokenAccount(payer, ata, wallet, mint)
}

func (x *execution) createTokenAccount(payer, ata, wallet, mint solanago.PublicKey) error {
	if err := x.create(payer, ata, solanago.TokenProgramID, make([]byte, ledger.TokenAccountSize)); err != nil {
		return err
	}
	return x.write(ata, &ledger.TokenAccountLayout{
		Mint:  mint,
		Owner: wallet,
		State: 1,
	})
}

// Metaplex token metadata program.

const masterEditionKeyV2 = 6

func (x *execution) metadata(ix *instruction) error {
	if len(ix.data) == 0 {
		return &programError{code: "invalid instruction data"}
	}
	switch ix.data[0] {
	case program.MetaplexCreateMetadataAccountV3:
		var args program.CreateMetadataV3Args
		if err := program.Decode(ix.data, &args); err != nil {
			return &programError{code: "invalid instruction data"}
		}
		if err := ix.need(5); err != nil {
			return err
		}
		md, mintAddr, mintAuth, payer, updateAuth := ix.accounts[0], ix.accounts[1], ix.accounts[2], ix.accounts[3], ix.accounts[4]
		if !md.Equals(derive.MetadataAddress(solanago.TokenMetadataProgramID, mintAddr).Address) {
			return customError(0x5, "Program log: Invalid metadata key")
		}
		m, ok := x.loadMint(mintAddr)
		if !ok {
			return customError(0x2b, "Program log: Mint given does not match mint on Metadata")
		}
		if !m.MintAuthority.Equals(mintAuth) || !x.isSigner(mintAuth) {
			return customError(0x4, "Program log: Mint authority provided does not match the authority on the mint")
		}
		switch {
		case len(args.Name) > ledger.MaxNameLength:
			return customError(0xb, "Program log: Name too long")
		case len(args.Symbol) > ledger.MaxSymbolLength:
			return customError(0xc, "Program log: Symbol too long")
		case len(args.URI) > ledger.MaxURILength:
			return customError(0xd, "Program log: URI too long")
		}
		for _, c := range args.Creators {
			if c.Verified && (!c.Address.Equals(updateAuth) || !x.isSigner(updateAuth)) {
				return customError(0x36, "Program log: Cannot unilaterally verify another creator")
			}
		}
		data, err := ledger.EncodeMetadata(updateAuth, mintAddr, args.Name, args.Symbol, args.URI)
		if err != nil {
			return &programError{code: "account data serialization failed"}
		}
		return x.create(payer, md, solanago.TokenMetadataProgramID, data)

	case program.MetaplexCreateMasterEditionV3:
		if err := ix.need(6); err != nil {
			return err
		}
		edition, mintAddr, updateAuth, mintAuth, payer, md := ix.accounts[0], ix.accounts[1], ix.accounts[2], ix.accounts[3], ix.accounts[4], ix.accounts[5]
		if !edition.Equals(derive.MasterEditionAddress(solanago.TokenMetadataProgramID, mintAddr).Address) {
			return customError(0x5, "Program log: Invalid edition key")
		}
		if !x.exists(md) {
			return customError(0x39, "Program log: Uninitialized")
		}
		m, ok := x.loadMint(mintAddr)
		if !ok || m.Supply != 1 {
			return customError(0x26, "Program log: Editions must have exactly one token")
		}
		if !m.MintAuthority.Equals(mintAuth) || !x.isSigner(mintAuth) || !x.isSigner(updateAuth) {
			return customError(0x4, "Program log: Mint authority provided does not match the authority on the mint")
		}
		// key, supply, Some(max_supply = 0)
		data := []byte{masterEditionKeyV2, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0}
		if err := x.create(payer, edition, solanago.TokenMetadataProgramID, data); err != nil {
			return err
		}
		// The edition takes over both mint authorities.
		m.MintAuthority = edition
		m.FreezeAuthority = edition
		return x.write(mintAddr, m)

	default:
		return &programError{code: fmt.Sprintf("unsupported metadata instruction %d", ix.data[0])}
	}
}
