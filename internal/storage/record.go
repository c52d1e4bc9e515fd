package storage

import (
	"carbon-credit-exchange/internal/domain"
)

// ValidateRecord checks the fields every backend requires.
func ValidateRecord(r *domain.OffChainRecord) error {
	if r == nil || r.Mint == "" {
		return ErrInvalidInput
	}
	return nil
}

// NormalizeRecord maps free-form standard and project type onto the known
// enums and fills a missing status. Empty enums stay empty so a placeholder
// does not shadow on-chain attributes.
func NormalizeRecord(r *domain.OffChainRecord) {
	if r.Standard != "" {
		r.Standard = domain.NormalizeStandard(string(r.Standard))
	}
	if r.ProjectType != "" {
		r.ProjectType = domain.NormalizeProjectType(string(r.ProjectType))
	}
	if r.Status == "" {
		r.Status = domain.StatusActive
	}
}
