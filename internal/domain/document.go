package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Metadata document trait names.
const (
	TraitProjectName       = "Project Name"
	TraitProjectType       = "Project Type"
	TraitLocation          = "Location"
	TraitCreditAmount      = "Credit Amount (tCO2e)"
	TraitStandard          = "Standard"
	TraitCertificationBody = "Certification Body"
	TraitVerificationDate  = "Verification Date"
	TraitVintageYear       = "Vintage Year"
)

// DocumentCategory is properties.category of every issued document.
const DocumentCategory = "carbon_credit"

// MetadataDocument is the off-chain JSON the token's metadata URI points to.
type MetadataDocument struct {
	Name        string             `json:"name"`
	Symbol      string             `json:"symbol"`
	Description string             `json:"description"`
	Image       string             `json:"image"`
	ExternalURL string             `json:"external_url,omitempty"`
	Attributes  []Attribute        `json:"attributes"`
	Properties  DocumentProperties `json:"properties"`
}

// DocumentProperties is the properties block of a MetadataDocument.
type DocumentProperties struct {
	Category string            `json:"category"`
	Files    []DocumentFile    `json:"files,omitempty"`
	Creators []DocumentCreator `json:"creators,omitempty"`
}

// DocumentFile references a file of the token.
type DocumentFile struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

// DocumentCreator is a royalty share holder.
type DocumentCreator struct {
	Address string `json:"address"`
	Share   int    `json:"share"`
}

// Attribute returns the value of traitType, or "" when absent.
func (d MetadataDocument) Attribute(traitType string) string {
	for _, a := range d.Attributes {
		if a.TraitType == traitType {
			return a.Value
		}
	}
	return ""
}

// Snapshot copies the document into the form kept with an off-chain record.
func (d MetadataDocument) Snapshot(uri string) MetadataSnapshot {
	return MetadataSnapshot{
		Name:        d.Name,
		Symbol:      d.Symbol,
		URI:         uri,
		Description: d.Description,
		Image:       d.Image,
		Attributes:  append([]Attribute(nil), d.Attributes...),
	}
}

// ParseMetadataDocument decodes a metadata JSON document.
func ParseMetadataDocument(data []byte) (*MetadataDocument, error) {
	var doc MetadataDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse metadata document: %w", err)
	}
	return &doc, nil
}

// UnmarshalJSON accepts numeric and boolean trait values, which third-party
// documents often use, and stores them as strings.
func (a *Attribute) UnmarshalJSON(data []byte) error {
	var raw struct {
		TraitType   string          `json:"trait_type"`
		Value       json.RawMessage `json:"value"`
		DisplayType string          `json:"display_type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.TraitType = raw.TraitType
	a.DisplayType = raw.DisplayType
	a.Value = ""

	v := strings.TrimSpace(string(raw.Value))
	switch {
	case v == "" || v == "null":
	case strings.HasPrefix(v, `"`):
		s, err := strconv.Unquote(v)
		if err != nil {
			return json.Unmarshal(raw.Value, &a.Value)
		}
		a.Value = s
	default:
		a.Value = v
	}
	return nil
}
