package idhash

import (
	"testing"

	"carbon-credit-exchange/internal/domain"
)

func TestComputeActivityID(t *testing.T) {
	tests := []struct {
		name       string
		signature  string
		eventIndex int
		kind       domain.ActivityKind
		mint       string
	}{
		{
			name:       "sale",
			signature:  "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW",
			eventIndex: 0,
			kind:       domain.ActivitySale,
			mint:       "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
		},
		{
			name:       "retire second event in tx",
			signature:  "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW",
			eventIndex: 1,
			kind:       domain.ActivityRetire,
			mint:       "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
		},
		{
			name:       "empty signature",
			signature:  "",
			eventIndex: 0,
			kind:       domain.ActivityMint,
			mint:       "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeActivityID(tt.signature, tt.eventIndex, tt.kind, tt.mint)
			if len(got) != 64 {
				t.Errorf("ComputeActivityID() length = %d, want 64", len(got))
			}

			got2 := ComputeActivityID(tt.signature, tt.eventIndex, tt.kind, tt.mint)
			if got != got2 {
				t.Errorf("ComputeActivityID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeActivityID_DifferentInputs(t *testing.T) {
	base := ComputeActivityID("Sig", 0, domain.ActivitySale, "Mint")

	if base == ComputeActivityID("OtherSig", 0, domain.ActivitySale, "Mint") {
		t.Error("Different signature should produce different hash")
	}
	if base == ComputeActivityID("Sig", 1, domain.ActivitySale, "Mint") {
		t.Error("Different event_index should produce different hash")
	}
	if base == ComputeActivityID("Sig", 0, domain.ActivityList, "Mint") {
		t.Error("Different kind should produce different hash")
	}
	if base == ComputeActivityID("Sig", 0, domain.ActivitySale, "OtherMint") {
		t.Error("Different mint should produce different hash")
	}
}

func TestComputeCursorKey(t *testing.T) {
	a := ComputeCursorKey("signatures", "G1oyFNSMSHRBPG6LWWpAMhJJNf23HWjNpq8FALJSUqs3")
	b := ComputeCursorKey("signatures", "G1oyFNSMSHRBPG6LWWpAMhJJNf23HWjNpq8FALJSUqs3")
	c := ComputeCursorKey("metadata", "G1oyFNSMSHRBPG6LWWpAMhJJNf23HWjNpq8FALJSUqs3")

	if len(a) != 32 {
		t.Errorf("ComputeCursorKey() length = %d, want 32", len(a))
	}
	if a != b {
		t.Errorf("ComputeCursorKey() not deterministic: %s != %s", a, b)
	}
	if a == c {
		t.Error("Different source should produce different key")
	}
}
