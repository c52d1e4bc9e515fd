package program

import solanago "github.com/gagliardetto/solana-go"

// SPL token instruction opcodes.
const (
	TokenMintTo          uint8 = 7
	TokenInitializeMint2 uint8 = 20
)

// InitializeMint2Args is the InitializeMint2 payload. The freeze authority
// is always set.
type InitializeMint2Args struct {
	Opcode          uint8
	Decimals        uint8
	MintAuthority   solanago.PublicKey
	FreezeOption    uint8
	FreezeAuthority solanago.PublicKey
}

// InitializeMint2 initializes mint with authority as mint and freeze authority.
func InitializeMint2(mint, authority solanago.PublicKey, decimals uint8) solanago.Instruction {
	return solanago.NewInstruction(
		solanago.TokenProgramID,
		solanago.AccountMetaSlice{meta(mint, true, false)},
		encode(&InitializeMint2Args{
			Opcode:          TokenInitializeMint2,
			Decimals:        decimals,
			MintAuthority:   authority,
			FreezeOption:    1,
			FreezeAuthority: authority,
		}),
	)
}

// MintToArgs is the MintTo payload.
type MintToArgs struct {
	Opcode uint8
	Amount uint64
}

// MintTo issues amount units of mint into destination.
func MintTo(mint, destination, authority solanago.PublicKey, amount uint64) solanago.Instruction {
	return solanago.NewInstruction(
		solanago.TokenProgramID,
		solanago.AccountMetaSlice{
			meta(mint, true, false),
			meta(destination, true, false),
			meta(authority, false, true),
		},
		encode(&MintToArgs{Opcode: TokenMintTo, Amount: amount}),
	)
}

// CreateAssociatedTokenAccount creates wallet's canonical token account for
// mint at ata, funded by payer.
func CreateAssociatedTokenAccount(payer, ata, wallet, mint solanago.PublicKey) solanago.Instruction {
	return solanago.NewInstruction(
		solanago.SPLAssociatedTokenAccountProgramID,
		solanago.AccountMetaSlice{
			meta(payer, true, true),
			meta(ata, true, false),
			meta(wallet, false, false),
			meta(mint, false, false),
			meta(solanago.SystemProgramID, false, false),
			meta(solanago.TokenProgramID, false, false),
		},
		[]byte{0},
	)
}
