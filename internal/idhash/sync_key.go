package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeCursorKey computes the sync cursor key of one scan source.
// Formula: SHA256(source|address)
// Returns the first 16 bytes hex-encoded (32 characters).
func ComputeCursorKey(source string, address string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%s", source, address)))
	return hex.EncodeToString(hash[:16])
}
