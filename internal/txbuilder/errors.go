package txbuilder

import (
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
)

// Reason classifies a failed precondition.
type Reason string

const (
	ReasonInvalidInput        Reason = "invalid input"
	ReasonAlreadyListed       Reason = "already listed"
	ReasonNotListed           Reason = "not listed"
	ReasonRetired             Reason = "retired"
	ReasonNotOwner            Reason = "not owner"
	ReasonInsufficientBalance Reason = "insufficient balance"
	ReasonAlreadyInitialized  Reason = "already initialized"
	ReasonNotInitialized      Reason = "exchange not initialized"
)

// PreconditionError is a caller-correctable state mismatch found before
// anything was submitted. Account is the account whose state failed the
// check, zero when the check was on the inputs alone.
type PreconditionError struct {
	Op      string
	Reason  Reason
	Mint    solanago.PublicKey
	Account solanago.PublicKey
	Detail  string
}

func (e *PreconditionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Reason)
	if !e.Mint.IsZero() {
		msg += fmt.Sprintf(" (mint %s)", e.Mint)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// IsReason reports whether err is a PreconditionError with reason r.
func IsReason(err error, r Reason) bool {
	var pe *PreconditionError
	return errors.As(err, &pe) && pe.Reason == r
}

// ListingUnavailableError reports a purchase whose listing was gone, or
// replaced, by the time it was read or executed. Another buyer or a
// cancellation won the race.
type ListingUnavailableError struct {
	Mint    solanago.PublicKey
	Listing solanago.PublicKey
	Err     error // the on-chain rejection, nil when the pre-read found nothing
}

func (e *ListingUnavailableError) Error() string {
	msg := fmt.Sprintf("buy: listing no longer available (mint %s, listing %s)", e.Mint, e.Listing)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ListingUnavailableError) Unwrap() error {
	return e.Err
}
