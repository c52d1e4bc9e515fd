package ledger

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"

	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/program"
)

// Account sizes in bytes.
const (
	MintSize         = 82
	TokenAccountSize = 165

	ExchangeAccountSize   = 8 + 32 + 8 + 1
	ListingAccountSize    = 8 + 32 + 32 + 8 + 1
	RetirementAccountSize = 8 + 32 + 32 + 8 + 32
)

// Metaplex metadata string caps.
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200

	metadataKeyV1 = 4
)

var (
	ExchangeDiscriminator   = program.AccountDiscriminator("CarbonExchange")
	ListingDiscriminator    = program.AccountDiscriminator("Listing")
	RetirementDiscriminator = program.AccountDiscriminator("RetirementRecord")
)

// ExchangeLayout is the CarbonExchange account.
type ExchangeLayout struct {
	Discriminator program.Discriminator
	Authority     solanago.PublicKey
	TotalCredits  uint64
	Bump          uint8
}

// ListingLayout is the Listing account.
type ListingLayout struct {
	Discriminator program.Discriminator
	Owner         solanago.PublicKey
	Mint          solanago.PublicKey
	Price         uint64
	Bump          uint8
}

// RetirementLayout is the RetirementRecord account.
type RetirementLayout struct {
	Discriminator  program.Discriminator
	Owner          solanago.PublicKey
	Mint           solanago.PublicKey
	RetirementDate int64
	Beneficiary    solanago.PublicKey
}

// MintLayout is the SPL token mint.
type MintLayout struct {
	MintAuthorityOption   uint32
	MintAuthority         solanago.PublicKey
	Supply                uint64
	Decimals              uint8
	IsInitialized         bool
	FreezeAuthorityOption uint32
	FreezeAuthority       solanago.PublicKey
}

// TokenAccountLayout is the SPL token account.
type TokenAccountLayout struct {
	Mint                 solanago.PublicKey
	Owner                solanago.PublicKey
	Amount               uint64
	DelegateOption       uint32
	Delegate             solanago.PublicKey
	State                uint8
	IsNativeOption       uint32
	IsNative             uint64
	DelegatedAmount      uint64
	CloseAuthorityOption uint32
	CloseAuthority       solanago.PublicKey
}

// metadataPrefix is the head of a Metaplex metadata account; creators and
// the trailing fields are not needed here.
type metadataPrefix struct {
	Key             uint8
	UpdateAuthority solanago.PublicKey
	Mint            solanago.PublicKey
	Name            string
	Symbol          string
	URI             string
}

func decodeAnchor(acc *Account, want program.Discriminator, size int, v interface{}) error {
	if len(acc.Data) < size {
		return fmt.Errorf("account %s: %d bytes, want %d", acc.Address, len(acc.Data), size)
	}
	if !bytes.Equal(acc.Data[:8], want[:]) {
		return fmt.Errorf("account %s: discriminator mismatch", acc.Address)
	}
	if err := bin.UnmarshalBorsh(v, acc.Data[:size]); err != nil {
		return fmt.Errorf("account %s: %w", acc.Address, err)
	}
	return nil
}

// DecodeExchange decodes the exchange singleton.
func DecodeExchange(acc *Account) (*domain.ExchangeState, error) {
	var l ExchangeLayout
	if err := decodeAnchor(acc, ExchangeDiscriminator, ExchangeAccountSize, &l); err != nil {
		return nil, fmt.Errorf("decode exchange: %w", err)
	}
	return &domain.ExchangeState{
		Address:      acc.Address.String(),
		Authority:    l.Authority.String(),
		TotalCredits: l.TotalCredits,
		Bump:         l.Bump,
	}, nil
}

// DecodeListing decodes a listing account.
func DecodeListing(acc *Account) (*domain.Listing, error) {
	var l ListingLayout
	if err := decodeAnchor(acc, ListingDiscriminator, ListingAccountSize, &l); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	return &domain.Listing{
		Address: acc.Address.String(),
		Seller:  l.Owner.String(),
		Mint:    l.Mint.String(),
		Price:   l.Price,
		Bump:    l.Bump,
	}, nil
}

// DecodeRetirement decodes a retirement record.
func DecodeRetirement(acc *Account) (*domain.Retirement, error) {
	var l RetirementLayout
	if err := decodeAnchor(acc, RetirementDiscriminator, RetirementAccountSize, &l); err != nil {
		return nil, fmt.Errorf("decode retirement: %w", err)
	}
	return &domain.Retirement{
		Address:     acc.Address.String(),
		RetiredBy:   l.Owner.String(),
		Mint:        l.Mint.String(),
		RetiredAt:   l.RetirementDate,
		Beneficiary: l.Beneficiary.String(),
	}, nil
}

// DecodeMint decodes an SPL mint.
func DecodeMint(acc *Account) (*MintLayout, error) {
	if len(acc.Data) < MintSize {
		return nil, fmt.Errorf("decode mint %s: %d bytes", acc.Address, len(acc.Data))
	}
	var l MintLayout
	if err := bin.UnmarshalBorsh(&l, acc.Data[:MintSize]); err != nil {
		return nil, fmt.Errorf("decode mint %s: %w", acc.Address, err)
	}
	return &l, nil
}

// DecodeTokenAccount decodes an SPL token account.
func DecodeTokenAccount(acc *Account) (*TokenAccountLayout, error) {
	if len(acc.Data) < TokenAccountSize {
		return nil, fmt.Errorf("decode token account %s: %d bytes", acc.Address, len(acc.Data))
	}
	var l TokenAccountLayout
	if err := bin.UnmarshalBorsh(&l, acc.Data[:TokenAccountSize]); err != nil {
		return nil, fmt.Errorf("decode token account %s: %w", acc.Address, err)
	}
	return &l, nil
}

// DecodeMetadata decodes a Metaplex metadata account. The padded strings
// are trimmed of trailing NULs.
func DecodeMetadata(acc *Account) (*domain.TokenMetadata, error) {
	if len(acc.Data) < 1+32+32 || acc.Data[0] != metadataKeyV1 {
		return nil, fmt.Errorf("decode metadata %s: not a metadata account", acc.Address)
	}
	var p metadataPrefix
	if err := bin.UnmarshalBorsh(&p, acc.Data); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", acc.Address, err)
	}
	return &domain.TokenMetadata{
		Address:         acc.Address.String(),
		UpdateAuthority: p.UpdateAuthority.String(),
		Mint:            p.Mint.String(),
		Name:            trimPadding(p.Name),
		Symbol:          trimPadding(p.Symbol),
		URI:             trimPadding(p.URI),
	}, nil
}

func trimPadding(s string) string {
	return string(bytes.TrimRight([]byte(s), "\x00 "))
}

// EncodeAccount serializes an account layout.
func EncodeAccount(layout interface{}) ([]byte, error) {
	return bin.MarshalBorsh(layout)
}

// EncodeMetadata serializes the head of a Metaplex metadata account with
// strings padded to their caps, the way the metadata program stores them.
func EncodeMetadata(updateAuthority, mint solanago.PublicKey, name, symbol, uri string) ([]byte, error) {
	return bin.MarshalBorsh(&metadataPrefix{
		Key:             metadataKeyV1,
		UpdateAuthority: updateAuthority,
		Mint:            mint,
		Name:            pad(name, MaxNameLength),
		Symbol:          pad(symbol, MaxSymbolLength),
		URI:             pad(uri, MaxURILength),
	})
}

func pad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + string(make([]byte, n-len(s)))
}
