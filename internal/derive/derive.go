// Package derive computes program-derived account addresses for the carbon
// credit exchange. All functions are pure: no network, no disk, no state.
package derive

import (
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Kind identifies a derived account family.
type Kind int

const (
	Exchange Kind = iota
	Listing
	Retirement
	Metadata
	MasterEdition
)

// Seed tags. Retirement uses the tag the deployed program checks ("retired").
const (
	ExchangeSeed   = "carbon_exchange"
	ListingSeed    = "listing"
	RetirementSeed = "retired"
	MetadataSeed   = "metadata"
	EditionSeed    = "edition"
)

func (k Kind) String() string {
	switch k {
	case Exchange:
		return "exchange"
	case Listing:
		return "listing"
	case Retirement:
		return "retirement"
	case Metadata:
		return "metadata"
	case MasterEdition:
		return "master_edition"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Account is a derived address together with its bump seed.
type Account struct {
	Address solanago.PublicKey
	Bump    uint8
}

// Derive computes the address of kind under programID.
//
// Exchange takes no components; every other kind takes exactly one token
// mint. For Metadata and MasterEdition programID is the metadata program,
// which is also mixed into the seeds.
//
// Derive panics with *Error on a zero program ID or a wrong component count.
func Derive(kind Kind, programID solanago.PublicKey, components ...solanago.PublicKey) Account {
	if programID.IsZero() {
		panic(&Error{Kind: kind.String(), Reason: "zero program id"})
	}

	want := 1
	if kind == Exchange {
		want = 0
	}
	if len(components) != want {
		panic(&Error{Kind: kind.String(), Reason: fmt.Sprintf("expected %d components, got %d", want, len(components))})
	}

	seeds, err := seedsFor(kind, programID, components)
	if err != nil {
		panic(err)
	}

	addr, bump, ok := findProgramAddress(seeds, programID)
	if !ok {
		panic(&Error{Kind: kind.String(), Reason: "no viable bump seed"})
	}
	return Account{Address: addr, Bump: bump}
}

func seedsFor(kind Kind, programID solanago.PublicKey, components []solanago.PublicKey) ([][]byte, error) {
	switch kind {
	case Exchange:
		return [][]byte{[]byte(ExchangeSeed)}, nil
	case Listing:
		return [][]byte{[]byte(ListingSeed), components[0][:]}, nil
	case Retirement:
		return [][]byte{[]byte(RetirementSeed), components[0][:]}, nil
	case Metadata:
		return [][]byte{[]byte(MetadataSeed), programID[:], components[0][:]}, nil
	case MasterEdition:
		return [][]byte{[]byte(MetadataSeed), programID[:], components[0][:], []byte(EditionSeed)}, nil
	default:
		return nil, &Error{Kind: kind.String(), Reason: "unknown kind"}
	}
}

// ExchangeAddress is the singleton exchange state account.
func ExchangeAddress(programID solanago.PublicKey) Account {
	return Derive(Exchange, programID)
}

// ListingAddress is the listing account of mint, present only while for sale.
func ListingAddress(programID, mint solanago.PublicKey) Account {
	return Derive(Listing, programID, mint)
}

// RetirementAddress is the write-once retirement record of mint.
func RetirementAddress(programID, mint solanago.PublicKey) Account {
	return Derive(Retirement, programID, mint)
}

// MetadataAddress is the Metaplex metadata account of mint.
func MetadataAddress(metadataProgramID, mint solanago.PublicKey) Account {
	return Derive(Metadata, metadataProgramID, mint)
}

// MasterEditionAddress is the Metaplex master edition account of mint.
func MasterEditionAddress(metadataProgramID, mint solanago.PublicKey) Account {
	return Derive(MasterEdition, metadataProgramID, mint)
}

// AssociatedTokenAddress is the canonical token account of owner for mint.
func AssociatedTokenAddress(owner, mint solanago.PublicKey) solanago.PublicKey {
	seeds := [][]byte{owner[:], solanago.TokenProgramID[:], mint[:]}
	addr, _, ok := findProgramAddress(seeds, solanago.SPLAssociatedTokenAccountProgramID)
	if !ok {
		panic(&Error{Kind: "associated_token", Reason: "no viable bump seed"})
	}
	return addr
}

// MustProgramID decodes a base58 program id and panics with *Error when it
// is malformed or not 32 bytes.
func MustProgramID(s string) solanago.PublicKey {
	raw, err := base58.Decode(s)
	if err != nil {
		panic(&Error{Kind: "program_id", Reason: fmt.Sprintf("%q: %v", s, err)})
	}
	if len(raw) != solanago.PublicKeyLength {
		panic(&Error{Kind: "program_id", Reason: fmt.Sprintf("%q: %d bytes", s, len(raw))})
	}
	return solanago.PublicKeyFromBytes(raw)
}

// findProgramAddress returns the canonical (highest bump) off-curve
// address for seeds under programID.
func findProgramAddress(seeds [][]byte, programID solanago.PublicKey) (solanago.PublicKey, uint8, bool) {
	addr, bump, err := solanago.FindProgramAddress(seeds, programID)
	if err != nil {
		return solanago.PublicKey{}, 0, false
	}
	return addr, bump, true
}
