package reconcile

import "fmt"

// MissError reports a token with no off-chain record. It is returned even
// when on-chain listing or retirement state exists for the token.
type MissError struct {
	TokenID string
}

func (e *MissError) Error() string {
	return fmt.Sprintf("reconciliation miss: no off-chain record for %s", e.TokenID)
}
