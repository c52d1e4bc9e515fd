package ledger

import (
	"context"

	solanago "github.com/gagliardetto/solana-go"

	"carbon-credit-exchange/internal/derive"
	"carbon-credit-exchange/internal/domain"
)

// The fetchers below return (nil, nil) when the account does not exist.
// A non-nil error always means the read itself failed.

// Exchange reads the exchange singleton.
func (c *Context) Exchange(ctx context.Context) (*domain.ExchangeState, error) {
	acc, err := c.fetch(ctx, derive.ExchangeAddress(c.ProgramID).Address)
	if err != nil || acc == nil {
		return nil, err
	}
	return DecodeExchange(acc)
}

// Listing reads the active listing of mint.
func (c *Context) Listing(ctx context.Context, mint solanago.PublicKey) (*domain.Listing, error) {
	acc, err := c.fetch(ctx, derive.ListingAddress(c.ProgramID, mint).Address)
	if err != nil || acc == nil {
		return nil, err
	}
	return DecodeListing(acc)
}

// Retirement reads the retirement record of mint.
func (c *Context) Retirement(ctx context.Context, mint solanago.PublicKey) (*domain.Retirement, error) {
	acc, err := c.fetch(ctx, derive.RetirementAddress(c.ProgramID, mint).Address)
	if err != nil || acc == nil {
		return nil, err
	}
	return DecodeRetirement(acc)
}

// Metadata reads the Metaplex metadata of mint.
func (c *Context) Metadata(ctx context.Context, mint solanago.PublicKey) (*domain.TokenMetadata, error) {
	acc, err := c.fetch(ctx, derive.MetadataAddress(c.MetadataProgramID, mint).Address)
	if err != nil || acc == nil {
		return nil, err
	}
	return DecodeMetadata(acc)
}

// TokenAccount reads owner's associated token account for mint.
func (c *Context) TokenAccount(ctx context.Context, owner, mint solanago.PublicKey) (*TokenAccountLayout, error) {
	acc, err := c.fetch(ctx, derive.AssociatedTokenAddress(owner, mint))
	if err != nil || acc == nil {
		return nil, err
	}
	return DecodeTokenAccount(acc)
}

// Listings returns every active listing of the exchange.
func (c *Context) Listings(ctx context.Context) ([]*domain.Listing, error) {
	if err := c.Err(); err != nil {
		return nil, err
	}
	accs, err := c.Client.FetchProgramAccounts(ctx, c.ProgramID, ListingDiscriminator[:], ListingAccountSize)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Listing, 0, len(accs))
	for _, acc := range accs {
		l, err := DecodeListing(acc)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// IssuedMetadata returns metadata accounts whose update authority is issuer.
func (c *Context) IssuedMetadata(ctx context.Context, issuer solanago.PublicKey) ([]*domain.TokenMetadata, error) {
	if err := c.Err(); err != nil {
		return nil, err
	}
	prefix := append([]byte{metadataKeyV1}, issuer[:]...)
	accs, err := c.Client.FetchProgramAccounts(ctx, c.MetadataProgramID, prefix, 0)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.TokenMetadata, 0, len(accs))
	for _, acc := range accs {
		md, err := DecodeMetadata(acc)
		if err != nil {
			c.logger.Debug("skip undecodable metadata account")
			continue
		}
		out = append(out, md)
	}
	return out, nil
}

func (c *Context) fetch(ctx context.Context, addr solanago.PublicKey) (*Account, error) {
	if err := c.Err(); err != nil {
		return nil, err
	}
	return c.Client.FetchAccount(ctx, addr)
}
