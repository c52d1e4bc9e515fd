package domain

// ExchangeState is the decoded exchange singleton account.
type ExchangeState struct {
	Address      string
	Authority    string
	TotalCredits uint64
	Bump         uint8
}

// Listing is the decoded listing account of a token for sale.
type Listing struct {
	Address string
	Seller  string
	Mint    string
	Price   uint64 // lamports
	Bump    uint8
}

// Retirement is the decoded write-once retirement record.
type Retirement struct {
	Address     string
	RetiredBy   string
	Mint        string
	RetiredAt   int64 // Unix seconds, ledger clock
	Beneficiary string
}

// TokenMetadata is the decoded Metaplex metadata account.
type TokenMetadata struct {
	Address         string
	UpdateAuthority string
	Mint            string
	Name            string
	Symbol          string
	URI             string
}
