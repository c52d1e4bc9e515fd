package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubmissionError_ProgramError(t *testing.T) {
	err := &SubmissionError{
		Op: "send",
		Logs: []string{
			"Program G1oyFNSMSHRBPG6LWWpAMhJJNf23HWjNpq8FALJSUqs3 invoke [1]",
			"Program log: Instruction: BuyCarbonCredit",
			"Program log: AnchorError caused by account: listing. Error Code: AccountNotInitialized. Error Number: 3012. Error Message: The program expected this account to be already initialized.",
			"Program G1oyFNSMSHRBPG6LWWpAMhJJNf23HWjNpq8FALJSUqs3 failed: custom program error: 0xbc4",
		},
		Err: errors.New("Transaction simulation failed"),
	}

	assert.Equal(t, "AccountNotInitialized", err.ProgramError())
	assert.True(t, err.LogsContain("caused by account: listing"))
	assert.False(t, err.LogsContain("InsufficientFunds"))
	assert.Contains(t, err.Error(), "send: transaction rejected")
}

func TestSubmissionError_NoProgramError(t *testing.T) {
	err := &SubmissionError{Op: "send", Logs: []string{"Program log: hello"}}
	assert.Equal(t, "", err.ProgramError())
}

func TestSubmissionError_Unwrap(t *testing.T) {
	cause := errors.New("blockhash not found")
	err := error(&SubmissionError{Op: "send", Err: cause})
	assert.ErrorIs(t, err, cause)
}
