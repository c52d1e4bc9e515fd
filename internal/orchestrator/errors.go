package orchestrator

import (
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"

	"carbon-credit-exchange/internal/ledger"
)

// ErrInvalidRequest reports a mint request missing required input.
var ErrInvalidRequest = errors.New("invalid mint request")

// PartialFailureError reports a mint whose token may exist on-chain while
// its off-chain record was not written. The fields identify what already
// happened so the record can be backfilled.
type PartialFailureError struct {
	RunID           string
	Step            Step
	TokenID         solanago.PublicKey
	Signature       solanago.Signature
	ImageLocator    string
	MetadataLocator string
	Status          ledger.Status
	Err             error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("mint %s partially applied at %s (signature %s, status %s, metadata %s): %v",
		e.TokenID, e.Step, e.Signature, e.Status, e.MetadataLocator, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
