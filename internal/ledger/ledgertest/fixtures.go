package ledgertest

import (
	solanago "github.com/gagliardetto/solana-go"

	"carbon-credit-exchange/internal/derive"
	"carbon-credit-exchange/internal/ledger"
)

// The Install helpers write account state directly, bypassing execution.
// They panic on encoding failures, which only a broken layout can cause.

// InstallExchange writes an initialized exchange singleton.
func (s *Simulator) InstallExchange(authority solanago.PublicKey, totalCredits uint64) solanago.PublicKey {
	pda := derive.ExchangeAddress(s.programID)
	s.install(pda.Address, s.programID, &ledger.ExchangeLayout{
		Discriminator: ledger.ExchangeDiscriminator,
		Authority:     authority,
		TotalCredits:  totalCredits,
		Bump:          pda.Bump,
	})
	return pda.Address
}

// InstallListing writes an active listing of mint.
func (s *Simulator) InstallListing(seller, mint solanago.PublicKey, price uint64) solanago.PublicKey {
	pda := derive.ListingAddress(s.programID, mint)
	s.install(pda.Address, s.programID, &ledger.ListingLayout{
		Discriminator: ledger.ListingDiscriminator,
		Owner:         seller,
		Mint:          mint,
		Price:         price,
		Bump:          pda.Bump,
	})
	return pda.Address
}

// InstallRetirement writes the retirement record of mint.
func (s *Simulator) InstallRetirement(owner, mint, beneficiary solanago.PublicKey, retiredAt int64) solanago.PublicKey {
	pda := derive.RetirementAddress(s.programID, mint)
	s.install(pda.Address, s.programID, &ledger.RetirementLayout{
		Discriminator:  ledger.RetirementDiscriminator,
		Owner:          owner,
		Mint:           mint,
		RetirementDate: retiredAt,
		Beneficiary:    beneficiary,
	})
	return pda.Address
}

// InstallMetadata writes a Metaplex metadata account of mint.
func (s *Simulator) InstallMetadata(updateAuthority, mint solanago.PublicKey, name, symbol, uri string) solanago.PublicKey {
	addr := derive.MetadataAddress(solanago.TokenMetadataProgramID, mint).Address
	data, err := ledger.EncodeMetadata(updateAuthority, mint, name, symbol, uri)
	if err != nil {
		panic(err)
	}
	s.SetAccount(&ledger.Account{
		Address:  addr,
		Owner:    solanago.TokenMetadataProgramID,
		Lamports: rentExempt(uint64(len(data))),
		Data:     data,
	})
	return addr
}

// InstallNFT writes an initialized zero-decimal mint with supply one held
// in owner's associated token account.
func (s *Simulator) InstallNFT(owner, mint solanago.PublicKey) solanago.PublicKey {
	s.install(mint, solanago.TokenProgramID, &ledger.MintLayout{
		MintAuthorityOption: 1,
		MintAuthority:       owner,
		Supply:              1,
		IsInitialized:       true,
	})
	ata := derive.AssociatedTokenAddress(owner, mint)
	s.install(ata, solanago.TokenProgramID, &ledger.TokenAccountLayout{
		Mint:   mint,
		Owner:  owner,
		Amount: 1,
		State:  1,
	})
	return ata
}

func (s *Simulator) install(addr, owner solanago.PublicKey, layout interface{}) {
	data, err := ledger.EncodeAccount(layout)
	if err != nil {
		panic(err)
	}
	s.SetAccount(&ledger.Account{
		Address:  addr,
		Owner:    owner,
		Lamports: rentExempt(uint64(len(data))),
		Data:     data,
	})
}
