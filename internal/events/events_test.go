package events

import (
	"encoding/base64"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-credit-exchange/internal/domain"
)

var (
	testMint   = solanago.MustPublicKeyFromBase58("7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU")
	testSeller = solanago.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	testBuyer  = solanago.MustPublicKeyFromBase58("G1oyFNSMSHRBPG6LWWpAMhJJNf23HWjNpq8FALJSUqs3")
)

func TestParse_ProgramLogs(t *testing.T) {
	sale := SaleCompleted{
		Mint:          testMint,
		Seller:        testSeller,
		Buyer:         testBuyer,
		Price:         2_500_000_000,
		Timestamp:     1_700_000_000,
		ListingClosed: true,
	}
	line, err := Encode(sale)
	require.NoError(t, err)

	logs := []string{
		"Program G1oyFNSMSHRBPG6LWWpAMhJJNf23HWjNpq8FALJSUqs3 invoke [1]",
		"Program log: Instruction: BuyCarbonCredit",
		line,
		"Program G1oyFNSMSHRBPG6LWWpAMhJJNf23HWjNpq8FALJSUqs3 success",
	}

	got, bad := Parse(logs)
	assert.Equal(t, 0, bad)
	require.Len(t, got, 1)
	assert.Equal(t, sale, got[0])
}

func TestParse_AllKinds(t *testing.T) {
	evs := []Event{
		ListingCreated{Mint: testMint, Owner: testSeller, Price: 10, Timestamp: 1},
		CreditRetired{Mint: testMint, Owner: testBuyer, Beneficiary: testSeller, RetirementDate: 2},
		CreditMinted{Mint: testMint, Owner: testSeller, ProjectName: "Mangrove", ProjectID: "VCS-1", VintageYear: 2023, MetricTons: 5},
	}
	var logs []string
	for _, ev := range evs {
		line, err := Encode(ev)
		require.NoError(t, err)
		logs = append(logs, line)
	}

	got, bad := Parse(logs)
	assert.Equal(t, 0, bad)
	assert.Equal(t, evs, got)
}

func TestParse_SkipsForeignAndMalformed(t *testing.T) {
	foreign := make([]byte, 16)
	logs := []string{
		LogPrefix + base64.StdEncoding.EncodeToString(foreign),
		LogPrefix + "not base64!",
		LogPrefix + base64.StdEncoding.EncodeToString([]byte{1, 2}),
	}

	got, bad := Parse(logs)
	assert.Empty(t, got)
	assert.Equal(t, 2, bad)
}

func TestActivity(t *testing.T) {
	sale := SaleCompleted{Mint: testMint, Seller: testSeller, Buyer: testBuyer, Price: 42, Timestamp: 1_700_000_000}
	a := sale.Activity("sig", 0, 99)

	assert.Equal(t, domain.ActivitySale, a.Kind)
	assert.Equal(t, testMint.String(), a.Mint)
	assert.Equal(t, testSeller.String(), a.Actor)
	assert.Equal(t, testBuyer.String(), a.Counterparty)
	assert.Equal(t, uint64(42), a.Price)
	assert.Equal(t, int64(1_700_000_000_000), a.Timestamp)
	assert.Len(t, a.EventID, 64)

	listed := ListingCreated{Mint: testMint, Owner: testSeller, Price: 1}.Activity("sig", 0, 99)
	assert.Empty(t, listed.Counterparty)
	assert.NotEqual(t, a.EventID, listed.EventID)
}
