package domain

// RecordStatus is the lifecycle state of an off-chain record.
type RecordStatus string

const (
	StatusActive   RecordStatus = "Active"
	StatusListed   RecordStatus = "Listed"
	StatusRetired  RecordStatus = "Retired"
	StatusArchived RecordStatus = "Archived"
)

// Attribute is one trait of the metadata JSON document.
type Attribute struct {
	TraitType   string `json:"trait_type"`
	Value       string `json:"value"`
	DisplayType string `json:"display_type,omitempty"`
}

// MetadataSnapshot is the copy of the uploaded metadata document kept with
// the off-chain record.
type MetadataSnapshot struct {
	Name        string      `json:"name,omitempty"`
	Symbol      string      `json:"symbol,omitempty"`
	URI         string      `json:"uri,omitempty"`
	Description string      `json:"description,omitempty"`
	Image       string      `json:"image,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
}

// Attribute returns the value of traitType, or "" when absent.
func (m MetadataSnapshot) Attribute(traitType string) string {
	for _, a := range m.Attributes {
		if a.TraitType == traitType {
			return a.Value
		}
	}
	return ""
}

// RetirementDetails is the off-chain shadow of a retirement record.
type RetirementDetails struct {
	RetiredBy   string `json:"retiredBy"`
	RetiredAt   int64  `json:"retiredAt"` // Unix ms
	Beneficiary string `json:"beneficiary"`
	Reason      string `json:"reason,omitempty"`
}

// OffChainRecord is the mutable descriptive document of one token.
// Corresponds to the carbon_credits table in PostgreSQL.
type OffChainRecord struct {
	Mint            string // PRIMARY KEY, base58 mint address
	Owner           string // current owner wallet
	ProjectName     string
	Location        Location
	VintageYear     int
	CarbonAmount    float64 // tonnes CO2e
	Standard        Standard
	ProjectType     ProjectType
	Description     string
	Verification    Verification
	ImageLocator    string // content locator of the image (ipfs://...)
	MetadataLocator string // content locator of the metadata document
	Metadata        MetadataSnapshot
	IsListed        bool   // shadow of the listing account, for queries only
	ListingPrice    *int64 // lamports (nullable)
	IsRetired       bool   // shadow of the retirement record, for queries only
	Retirement      *RetirementDetails
	Views           int64
	Favorites       int64
	Status          RecordStatus
	Placeholder     bool  // created by backfill, not by mint
	CreatedAt       int64 // Unix ms
	UpdatedAt       int64 // Unix ms
}

// RecordFilter selects off-chain records. Zero fields do not filter.
type RecordFilter struct {
	Owner           string
	ListedOnly      bool
	IncludeArchived bool
	Limit           int
}
