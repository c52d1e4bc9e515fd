// Package idhash computes deterministic identifiers for records that are
// derived from on-chain data and may be observed more than once.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"carbon-credit-exchange/internal/domain"
)

// ComputeActivityID computes a deterministic event_id using SHA256.
// Formula: SHA256(signature|event_index|kind|mint)
// Returns hex-encoded hash (64 characters).
//
// The same event seen by the periodic scan and by the log subscription
// hashes to the same id, so stores can deduplicate on it.
func ComputeActivityID(
	signature string,
	eventIndex int,
	kind domain.ActivityKind,
	mint string,
) string {
	data := fmt.Sprintf("%s|%d|%s|%s",
		signature,
		eventIndex,
		string(kind),
		mint,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
