package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"carbon-credit-exchange/internal/domain"
)

func TestValidateRecord(t *testing.T) {
	assert.ErrorIs(t, ValidateRecord(nil), ErrInvalidInput)
	assert.ErrorIs(t, ValidateRecord(&domain.OffChainRecord{}), ErrInvalidInput)
	assert.NoError(t, ValidateRecord(&domain.OffChainRecord{Mint: "m"}))
}

func TestNormalizeRecord(t *testing.T) {
	r := &domain.OffChainRecord{Mint: "m", Standard: "gold standard", ProjectType: "forestry"}
	NormalizeRecord(r)
	assert.Equal(t, domain.StandardGoldStandard, r.Standard)
	assert.Equal(t, domain.ProjectForestry, r.ProjectType)
	assert.Equal(t, domain.StatusActive, r.Status)

	placeholder := &domain.OffChainRecord{Mint: "m", Status: domain.StatusListed}
	NormalizeRecord(placeholder)
	assert.Empty(t, placeholder.ProjectType)
	assert.Empty(t, placeholder.Standard)
	assert.Equal(t, domain.StatusListed, placeholder.Status)
}
