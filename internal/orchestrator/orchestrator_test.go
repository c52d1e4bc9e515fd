package orchestrator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-credit-exchange/internal/contentstore"
	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/ledger"
	"carbon-credit-exchange/internal/ledger/ledgertest"
	"carbon-credit-exchange/internal/orchestrator"
	"carbon-credit-exchange/internal/program"
	"carbon-credit-exchange/internal/storage"
	"carbon-credit-exchange/internal/storage/memory"
	"carbon-credit-exchange/internal/txbuilder"
)

var programID = solanago.MustPublicKeyFromBase58(program.DefaultExchangeProgramID)

const sol = domain.LamportsPerSOL

type fixture struct {
	sim      *ledgertest.Simulator
	lc       *ledger.Context
	builder  *txbuilder.Builder
	content  *contentstore.Memory
	records  *memory.RecordStore
	activity *memory.ActivityStore
	issuer   *ledger.Keypair
}

func newKeypair(t *testing.T) *ledger.Keypair {
	t.Helper()
	kp, err := ledger.NewKeypair()
	require.NoError(t, err)
	return kp
}

func newFixture(t *testing.T, ctxOpts ...ledger.Option) *fixture {
	t.Helper()
	sim := ledgertest.New(programID, ledgertest.WithClock(func() time.Time {
		return time.Unix(1_700_000_000, 0)
	}))
	opts := append([]ledger.Option{
		ledger.WithConfirmTimeout(time.Second),
		ledger.WithPollInterval(5 * time.Millisecond),
	}, ctxOpts...)
	lc := ledger.NewContext(sim, programID, opts...)
	f := &fixture{
		sim:      sim,
		lc:       lc,
		builder:  txbuilder.New(lc),
		content:  contentstore.NewMemory(),
		records:  memory.NewRecordStore(),
		activity: memory.NewActivityStore(),
		issuer:   newKeypair(t),
	}
	sim.Airdrop(f.issuer.PublicKey(), 100*sol)
	sim.InstallExchange(newKeypair(t).PublicKey(), 0)
	return f
}

func (f *fixture) orchestrator(records storage.RecordStore) *orchestrator.Orchestrator {
	if records == nil {
		records = f.records
	}
	return orchestrator.New(orchestrator.Options{
		Builder:  f.builder,
		Content:  f.content,
		Records:  records,
		Activity: f.activity,
	})
}

func mangroveRequest(issuer ledger.Signer) orchestrator.MintRequest {
	return orchestrator.MintRequest{
		Issuer: issuer,
		Project: domain.ProjectAttributes{
			ProjectName:  "Sundarbans Mangrove Restoration",
			Location:     domain.Location{Country: "Bangladesh", Region: "Khulna"},
			VintageYear:  2023,
			CarbonAmount: 12.5,
			Standard:     domain.StandardVerra,
			ProjectType:  domain.ProjectReforestation,
			Verification: domain.Verification{CertificationBody: "Verra", VerificationDate: "2024-01-15"},
		},
		Image:     []byte("\x89PNG fake image"),
		ImageName: "mangrove.png",
	}
}

func TestMint_WritesRecordAfterConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.orchestrator(nil).Mint(ctx, mangroveRequest(f.issuer))
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "mangrove.png", f.content.Name(res.ImageLocator))
	assert.Equal(t, "metadata.json", f.content.Name(res.MetadataLocator))

	md, err := f.lc.Metadata(ctx, res.TokenID)
	require.NoError(t, err)
	require.NotNil(t, md)
	assert.Equal(t, res.MetadataLocator, md.URI)
	assert.Equal(t, "Sundarbans Mangrove Restoration", md.Name)
	assert.Equal(t, orchestrator.DefaultSymbol, md.Symbol)

	rec, err := f.records.Get(ctx, res.TokenID.String())
	require.NoError(t, err)
	assert.Equal(t, f.issuer.PublicKey().String(), rec.Owner)
	assert.Equal(t, domain.ProjectReforestation, rec.ProjectType)
	assert.Equal(t, res.ImageLocator, rec.ImageLocator)
	assert.Equal(t, res.MetadataLocator, rec.Metadata.URI)
	assert.Equal(t, "12.5", rec.Metadata.Attribute(domain.TraitCreditAmount))
	assert.Equal(t, domain.StatusActive, rec.Status)
	assert.False(t, rec.Placeholder)

	events, err := f.activity.GetByMint(ctx, res.TokenID.String())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.ActivityMint, events[0].Kind)
	assert.Equal(t, res.Signature.String(), events[0].Signature)
}

func TestMint_DocumentContents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.orchestrator(nil).Mint(ctx, mangroveRequest(f.issuer))
	require.NoError(t, err)

	data, err := f.content.Fetch(ctx, res.MetadataLocator)
	require.NoError(t, err)
	doc, err := domain.ParseMetadataDocument(data)
	require.NoError(t, err)

	assert.Equal(t, res.ImageLocator, doc.Image)
	assert.Equal(t, "Carbon credit from Sundarbans Mangrove Restoration", doc.Description)
	assert.Equal(t, "Khulna, Bangladesh", doc.Attribute(domain.TraitLocation))
	assert.Equal(t, "2023", doc.Attribute(domain.TraitVintageYear))
	assert.Equal(t, "Verra", doc.Attribute(domain.TraitCertificationBody))
	assert.Equal(t, domain.DocumentCategory, doc.Properties.Category)
	require.Len(t, doc.Properties.Files, 1)
	assert.Equal(t, "image/png", doc.Properties.Files[0].Type)
	require.Len(t, doc.Properties.Creators, 1)
	assert.Equal(t, 100, doc.Properties.Creators[0].Share)
	assert.Equal(t, f.issuer.PublicKey().String(), doc.Properties.Creators[0].Address)
}

func TestMint_LongNameIsTruncatedOnChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := mangroveRequest(f.issuer)
	req.Project.ProjectName = "Great Green Wall Sahel Afforestation Programme"

	res, err := f.orchestrator(nil).Mint(ctx, req)
	require.NoError(t, err)

	md, err := f.lc.Metadata(ctx, res.TokenID)
	require.NoError(t, err)
	assert.Len(t, md.Name, ledger.MaxNameLength)
	assert.Equal(t, req.Project.ProjectName, res.Record.ProjectName)
}

func TestMint_InvalidRequest(t *testing.T) {
	f := newFixture(t)
	req := mangroveRequest(f.issuer)
	req.Image = nil

	_, err := f.orchestrator(nil).Mint(context.Background(), req)
	assert.ErrorIs(t, err, orchestrator.ErrInvalidRequest)
	assert.Zero(t, f.content.Len())
	assert.Zero(t, f.sim.SubmitCount())
}

func TestMint_UploadFailureNeverMints(t *testing.T) {
	f := newFixture(t)
	f.content.FailUploads(errors.New("ipfs unavailable"))

	_, err := f.orchestrator(nil).Mint(context.Background(), mangroveRequest(f.issuer))
	assert.ErrorContains(t, err, "upload_image")
	assert.Zero(t, f.sim.SubmitCount())
}

func TestMint_LedgerFailureWritesNoRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rejected := errors.New("node is behind")
	f.sim.FailSubmissions(rejected)

	_, err := f.orchestrator(nil).Mint(ctx, mangroveRequest(f.issuer))
	require.ErrorIs(t, err, rejected)

	var pf *orchestrator.PartialFailureError
	assert.False(t, errors.As(err, &pf))

	records, err := f.records.Query(ctx, domain.RecordFilter{IncludeArchived: true})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 2, f.content.Len(), "uploads stay orphaned")
}

func TestMint_InsufficientBalanceKeepsPreconditionKind(t *testing.T) {
	f := newFixture(t)
	poor := newKeypair(t)
	f.sim.Airdrop(poor.PublicKey(), 1000)

	_, err := f.orchestrator(nil).Mint(context.Background(), mangroveRequest(poor))
	assert.True(t, txbuilder.IsReason(err, txbuilder.ReasonInsufficientBalance), "got %v", err)
}

func TestMint_ConfirmationTimeoutIsPartial(t *testing.T) {
	f := newFixture(t, ledger.WithConfirmTimeout(30*time.Millisecond))
	ctx := context.Background()
	f.sim.HoldConfirmations(true)

	_, err := f.orchestrator(nil).Mint(ctx, mangroveRequest(f.issuer))

	var pf *orchestrator.PartialFailureError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, orchestrator.StepMint, pf.Step)
	assert.Equal(t, ledger.StatusUnknown, pf.Status)
	assert.False(t, pf.TokenID.IsZero())
	assert.False(t, pf.Signature.IsZero())
	assert.NotEmpty(t, pf.MetadataLocator)
	assert.ErrorIs(t, err, ledger.ErrConfirmationTimeout)

	_, err = f.records.Get(ctx, pf.TokenID.String())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

type brokenRecords struct {
	storage.RecordStore
}

func (brokenRecords) Put(context.Context, *domain.OffChainRecord) error {
	return errors.New("postgres: connection reset")
}

func TestMint_RecordFailureIsPartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orchestrator(brokenRecords{f.records}).Mint(ctx, mangroveRequest(f.issuer))

	var pf *orchestrator.PartialFailureError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, orchestrator.StepWriteRecord, pf.Step)
	assert.Equal(t, ledger.StatusConfirmed, pf.Status)
	assert.NotEmpty(t, pf.ImageLocator)
	assert.Contains(t, pf.Error(), pf.TokenID.String())

	md, err := f.lc.Metadata(ctx, pf.TokenID)
	require.NoError(t, err)
	assert.NotNil(t, md, "token exists on-chain")
}
