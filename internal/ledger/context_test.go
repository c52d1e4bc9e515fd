package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-credit-exchange/internal/ledger"
	"carbon-credit-exchange/internal/ledger/ledgertest"
	"carbon-credit-exchange/internal/program"
)

var programID = solanago.MustPublicKeyFromBase58(program.DefaultExchangeProgramID)

// scriptedClient returns canned confirmation results.
type scriptedClient struct {
	*ledgertest.Simulator
	statuses []ledger.Status
	errs     []error
	calls    int
}

func (c *scriptedClient) Confirm(ctx context.Context, sig solanago.Signature) (ledger.Status, error) {
	i := c.calls
	c.calls++
	if i >= len(c.statuses) {
		return ledger.StatusPending, nil
	}
	return c.statuses[i], c.errs[i]
}

func TestAwaitConfirmation(t *testing.T) {
	failure := &ledger.SubmissionError{Op: "execute", Logs: []string{"Program log: boom"}}

	tests := []struct {
		name       string
		statuses   []ledger.Status
		errs       []error
		wantStatus ledger.Status
		wantErr    error
	}{
		{
			name:       "confirmed after pending polls",
			statuses:   []ledger.Status{ledger.StatusPending, ledger.StatusPending, ledger.StatusConfirmed},
			errs:       []error{nil, nil, nil},
			wantStatus: ledger.StatusConfirmed,
		},
		{
			name:       "transient poll error then confirmed",
			statuses:   []ledger.Status{ledger.StatusPending, ledger.StatusConfirmed},
			errs:       []error{errors.New("connection reset"), nil},
			wantStatus: ledger.StatusConfirmed,
		},
		{
			name:       "landed with failure",
			statuses:   []ledger.Status{ledger.StatusFailed},
			errs:       []error{failure},
			wantStatus: ledger.StatusFailed,
			wantErr:    failure,
		},
		{
			name:       "never confirmed",
			wantStatus: ledger.StatusUnknown,
			wantErr:    ledger.ErrConfirmationTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptedClient{Simulator: ledgertest.New(programID), statuses: tt.statuses, errs: tt.errs}
			lc := ledger.NewContext(client, programID,
				ledger.WithConfirmTimeout(50*time.Millisecond),
				ledger.WithPollInterval(time.Millisecond))

			status, err := lc.AwaitConfirmation(context.Background(), solanago.Signature{1})
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestAwaitConfirmation_CallerCancel(t *testing.T) {
	client := &scriptedClient{Simulator: ledgertest.New(programID)}
	lc := ledger.NewContext(client, programID,
		ledger.WithConfirmTimeout(time.Minute),
		ledger.WithPollInterval(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	status, err := lc.AwaitConfirmation(ctx, solanago.Signature{1})
	assert.Equal(t, ledger.StatusUnknown, status)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ledger.ErrConfirmationTimeout)
}

func TestContext_CloseRunsHooksOnce(t *testing.T) {
	var closed int
	lc := ledger.NewContext(ledgertest.New(programID), programID, ledger.OnClose(func() error {
		closed++
		return nil
	}))

	require.NoError(t, lc.Err())
	require.NoError(t, lc.Close())
	require.NoError(t, lc.Close())
	assert.Equal(t, 1, closed)
	assert.ErrorIs(t, lc.Err(), ledger.ErrClosed)

	_, err := lc.Listing(context.Background(), solanago.PublicKey{9})
	assert.ErrorIs(t, err, ledger.ErrClosed)
}

func TestReader_AbsentAccountsAreNil(t *testing.T) {
	lc := ledger.NewContext(ledgertest.New(programID), programID)
	ctx := context.Background()
	mint := solanago.PublicKey{4}

	listing, err := lc.Listing(ctx, mint)
	require.NoError(t, err)
	assert.Nil(t, listing)

	rec, err := lc.Retirement(ctx, mint)
	require.NoError(t, err)
	assert.Nil(t, rec)

	ex, err := lc.Exchange(ctx)
	require.NoError(t, err)
	assert.Nil(t, ex)
}

func TestReader_ListingsAndIssuedMetadata(t *testing.T) {
	sim := ledgertest.New(programID)
	lc := ledger.NewContext(sim, programID)
	ctx := context.Background()
	issuer, other := solanago.PublicKey{1}, solanago.PublicKey{2}
	m1, m2, m3 := solanago.PublicKey{11}, solanago.PublicKey{12}, solanago.PublicKey{13}

	sim.InstallListing(issuer, m1, 10)
	sim.InstallListing(other, m2, 20)
	sim.InstallMetadata(issuer, m1, "One", "CCX", "ipfs://one")
	sim.InstallMetadata(issuer, m2, "Two", "CCX", "ipfs://two")
	sim.InstallMetadata(other, m3, "Three", "CCX", "ipfs://three")

	listings, err := lc.Listings(ctx)
	require.NoError(t, err)
	assert.Len(t, listings, 2)

	issued, err := lc.IssuedMetadata(ctx, issuer)
	require.NoError(t, err)
	names := []string{}
	for _, md := range issued {
		names = append(names, md.Name)
	}
	assert.ElementsMatch(t, []string{"One", "Two"}, names)
}
