package program

import solanago "github.com/gagliardetto/solana-go"

// System program instruction indices.
const (
	SystemCreateAccount uint32 = 0
	SystemTransfer      uint32 = 2
)

// CreateAccountArgs is the system CreateAccount payload.
type CreateAccountArgs struct {
	Instruction uint32
	Lamports    uint64
	Space       uint64
	Owner       solanago.PublicKey
}

// CreateAccount allocates newAccount with space bytes owned by owner.
func CreateAccount(from, newAccount solanago.PublicKey, lamports, space uint64, owner solanago.PublicKey) solanago.Instruction {
	return solanago.NewInstruction(
		solanago.SystemProgramID,
		solanago.AccountMetaSlice{
			meta(from, true, true),
			meta(newAccount, true, true),
		},
		encode(&CreateAccountArgs{
			Instruction: SystemCreateAccount,
			Lamports:    lamports,
			Space:       space,
			Owner:       owner,
		}),
	)
}
