package ledger

import (
	"errors"
	"fmt"
	"strings"

	solanago "github.com/gagliardetto/solana-go"
)

var (
	// ErrConfirmationTimeout is returned with StatusUnknown when a submitted
	// transaction was not confirmed within the wait bound. The transaction
	// may still land; callers must re-read state before resubmitting.
	ErrConfirmationTimeout = errors.New("submitted, status unknown: confirmation timed out")

	// ErrSubmissionUnknown is returned by Submit when the broadcast may have
	// reached the cluster but no verdict came back. The signature returned
	// alongside it is valid and must be resolved through AwaitConfirmation.
	ErrSubmissionUnknown = errors.New("submitted, status unknown")

	// ErrClosed is returned by a closed Context.
	ErrClosed = errors.New("ledger context closed")
)

// SubmissionError reports a transaction the cluster rejected in preflight
// or executed with an error. Logs holds the raw program logs.
type SubmissionError struct {
	Op        string
	Signature solanago.Signature // zero when rejected before landing
	Code      int                // RPC error code, zero when unknown
	Logs      []string
	Err       error
}

func (e *SubmissionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: transaction rejected", e.Op)
	if !e.Signature.IsZero() {
		fmt.Fprintf(&b, " (signature %s)", e.Signature)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// LogsContain reports whether any log line contains substr.
func (e *SubmissionError) LogsContain(substr string) bool {
	for _, line := range e.Logs {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// ProgramError extracts the Anchor error name from the logs, e.g.
// "AccountNotInitialized". Returns "" when none is present.
func (e *SubmissionError) ProgramError() string {
	const marker = "Error Code: "
	for _, line := range e.Logs {
		i := strings.Index(line, marker)
		if i < 0 {
			continue
		}
		rest := line[i+len(marker):]
		if j := strings.IndexAny(rest, ". "); j >= 0 {
			rest = rest[:j]
		}
		return rest
	}
	return ""
}
