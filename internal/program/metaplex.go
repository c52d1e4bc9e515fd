package program

import solanago "github.com/gagliardetto/solana-go"

// Metaplex token metadata instruction discriminators.
const (
	MetaplexCreateMasterEditionV3   uint8 = 17
	MetaplexCreateMetadataAccountV3 uint8 = 33
)

// Creator is a metadata creator entry.
type Creator struct {
	Address  solanago.PublicKey
	Verified bool
	Share    uint8
}

// CreateMetadataV3Args is the CreateMetadataAccountV3 payload with one or
// more creators and no collection, uses or collection details.
type CreateMetadataV3Args struct {
	Discriminator        uint8
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	CreatorsOption       uint8
	Creators             []Creator
	CollectionOption     uint8
	UsesOption           uint8
	IsMutable            bool
	DetailsOption        uint8
}

// MetadataParams are the display fields of a new metadata account.
type MetadataParams struct {
	Name   string
	Symbol string
	URI    string
}

// CreateMetadataAccountV3 creates the metadata account of mint with the
// update authority as sole, verified creator holding the full share.
func CreateMetadataAccountV3(metadata, mint, mintAuthority, payer, updateAuthority solanago.PublicKey, p MetadataParams) solanago.Instruction {
	return solanago.NewInstruction(
		solanago.TokenMetadataProgramID,
		solanago.AccountMetaSlice{
			meta(metadata, true, false),
			meta(mint, false, false),
			meta(mintAuthority, false, true),
			meta(payer, true, true),
			meta(updateAuthority, false, true),
			meta(solanago.SystemProgramID, false, false),
			meta(solanago.SysVarRentPubkey, false, false),
		},
		encode(&CreateMetadataV3Args{
			Discriminator:  MetaplexCreateMetadataAccountV3,
			Name:           p.Name,
			Symbol:         p.Symbol,
			URI:            p.URI,
			CreatorsOption: 1,
			Creators: []Creator{
				{Address: updateAuthority, Verified: true, Share: 100},
			},
			IsMutable: true,
		}),
	)
}

// CreateMasterEditionV3Args is the CreateMasterEditionV3 payload.
type CreateMasterEditionV3Args struct {
	Discriminator   uint8
	MaxSupplyOption uint8
	MaxSupply       uint64
}

// CreateMasterEditionV3 caps mint at its current supply (no prints).
func CreateMasterEditionV3(edition, mint, updateAuthority, mintAuthority, payer, metadata solanago.PublicKey) solanago.Instruction {
	return solanago.NewInstruction(
		solanago.TokenMetadataProgramID,
		solanago.AccountMetaSlice{
			meta(edition, true, false),
			meta(mint, true, false),
			meta(updateAuthority, false, true),
			meta(mintAuthority, false, true),
			meta(payer, true, true),
			meta(metadata, true, false),
			meta(solanago.TokenProgramID, false, false),
			meta(solanago.SystemProgramID, false, false),
			meta(solanago.SysVarRentPubkey, false, false),
		},
		encode(&CreateMasterEditionV3Args{
			Discriminator:   MetaplexCreateMasterEditionV3,
			MaxSupplyOption: 1,
			MaxSupply:       0,
		}),
	)
}
