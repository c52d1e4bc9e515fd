// Package orchestrator runs the mint saga:
// upload image → upload metadata document → mint → write off-chain record.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-credit-exchange/internal/contentstore"
	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/idhash"
	"carbon-credit-exchange/internal/ledger"
	"carbon-credit-exchange/internal/observability"
	"carbon-credit-exchange/internal/storage"
	"carbon-credit-exchange/internal/txbuilder"
)

// DefaultSymbol is the token symbol used when a request names none.
const DefaultSymbol = "CARBON"

// Step names one saga step.
type Step string

const (
	StepUploadImage    Step = "upload_image"
	StepUploadMetadata Step = "upload_metadata"
	StepMint           Step = "mint"
	StepWriteRecord    Step = "write_record"
)

// recovery declares what undoes or completes each step after a later
// step fails.
var recovery = map[Step]string{
	StepUploadImage:    "none, orphaned content is left in place",
	StepUploadMetadata: "none, orphaned content is left in place",
	StepMint:           "none, the token is permanent",
	StepWriteRecord:    "backfill sync creates the record",
}

// Orchestrator coordinates content uploads, the mint transaction and the
// off-chain record.
type Orchestrator struct {
	builder  *txbuilder.Builder
	content  contentstore.Store
	records  storage.RecordStore
	activity storage.ActivityStore
	logger   *zap.Logger
	now      func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Builder *txbuilder.Builder
	Content contentstore.Store
	Records storage.RecordStore

	// Optional
	Activity storage.ActivityStore // mint events are recorded when set
	Logger   *zap.Logger
	Now      func() time.Time
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		builder:  opts.Builder,
		content:  opts.Content,
		records:  opts.Records,
		activity: opts.Activity,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// MintRequest describes one credit to tokenize.
type MintRequest struct {
	Issuer    ledger.Signer
	Mint      ledger.Signer      // optional, generated when nil
	Recipient solanago.PublicKey // defaults to the issuer
	Symbol    string             // defaults to DefaultSymbol

	Project domain.ProjectAttributes

	Image     []byte
	ImageName string
	ImageType string // MIME type, defaults to image/png
}

func (r *MintRequest) validate() error {
	switch {
	case r.Issuer == nil:
		return fmt.Errorf("%w: issuer is required", ErrInvalidRequest)
	case strings.TrimSpace(r.Project.ProjectName) == "":
		return fmt.Errorf("%w: project name is required", ErrInvalidRequest)
	case len(r.Image) == 0:
		return fmt.Errorf("%w: image is required", ErrInvalidRequest)
	case r.Project.CarbonAmount <= 0:
		return fmt.Errorf("%w: carbon amount must be positive", ErrInvalidRequest)
	}
	return nil
}

// MintResult is a completed saga.
type MintResult struct {
	RunID           string
	TokenID         solanago.PublicKey
	Signature       solanago.Signature
	ImageLocator    string
	MetadataLocator string
	Record          *domain.OffChainRecord
}

// Mint runs the saga. Failures before the mint leave only orphaned
// content and return the underlying error. A failed mint writes no record
// and returns the builder error. A mint whose confirmation timed out, or
// whose record could not be written, returns *PartialFailureError.
func (o *Orchestrator) Mint(ctx context.Context, req MintRequest) (res *MintResult, err error) {
	start := o.now()
	runID := uuid.NewString()
	log := o.logger.With(zap.String("run_id", runID))
	defer func() { o.finish(start, err) }()

	if err := req.validate(); err != nil {
		return nil, err
	}
	recipient := req.Recipient
	if recipient.IsZero() {
		recipient = req.Issuer.PublicKey()
	}
	res = &MintResult{RunID: runID}

	// upload_image
	res.ImageLocator, err = o.content.Upload(ctx, req.Image, imageName(req))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StepUploadImage, err)
	}
	log.Info("image uploaded", zap.String("locator", res.ImageLocator))

	// upload_metadata
	doc := BuildDocument(req.Project, res.ImageLocator, imageType(req), symbol(req), req.Issuer.PublicKey())
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: encode document: %w", StepUploadMetadata, err)
	}
	res.MetadataLocator, err = o.content.Upload(ctx, body, "metadata.json")
	if err != nil {
		log.Warn("metadata upload failed", zap.String("orphan", res.ImageLocator),
			zap.String("recovery", recovery[StepUploadImage]), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", StepUploadMetadata, err)
	}
	log.Info("metadata uploaded", zap.String("locator", res.MetadataLocator))

	// mint
	minted, err := o.builder.Mint(ctx, txbuilder.MintRequest{
		Payer:     req.Issuer,
		Mint:      req.Mint,
		Recipient: recipient,
		Name:      truncate(doc.Name, ledger.MaxNameLength),
		Symbol:    truncate(doc.Symbol, ledger.MaxSymbolLength),
		URI:       res.MetadataLocator,
	})
	if err != nil {
		if minted != nil && minted.Status == ledger.StatusUnknown {
			return nil, o.partial(log, runID, StepMint, res, minted, err)
		}
		log.Warn("mint failed, no record written", zap.Error(err))
		return nil, err
	}
	res.TokenID = minted.TokenID
	res.Signature = minted.Signature

	// write_record
	record := o.buildRecord(req.Project, recipient, doc, res)
	if err := o.records.Put(ctx, record); err != nil {
		return nil, o.partial(log, runID, StepWriteRecord, res, minted, err)
	}
	res.Record = record
	o.recordActivity(ctx, log, req.Issuer.PublicKey(), recipient, res)

	log.Info("mint saga completed",
		zap.String("mint", res.TokenID.String()),
		zap.String("signature", res.Signature.String()))
	return res, nil
}

func (o *Orchestrator) partial(log *zap.Logger, runID string, step Step, res *MintResult, minted *txbuilder.Result, err error) error {
	observability.RecordPartialMint()
	log.Error("mint partially applied",
		zap.String("step", string(step)),
		zap.String("mint", minted.TokenID.String()),
		zap.String("signature", minted.Signature.String()),
		zap.String("status", minted.Status.String()),
		zap.String("recovery", recovery[StepWriteRecord]),
		zap.Error(err))
	return &PartialFailureError{
		RunID:           runID,
		Step:            step,
		TokenID:         minted.TokenID,
		Signature:       minted.Signature,
		ImageLocator:    res.ImageLocator,
		MetadataLocator: res.MetadataLocator,
		Status:          minted.Status,
		Err:             err,
	}
}

func (o *Orchestrator) finish(start time.Time, err error) {
	outcome := "ok"
	var pf *PartialFailureError
	switch {
	case errors.As(err, &pf):
		outcome = "partial"
	case err != nil:
		outcome = "error"
	}
	observability.RecordWorkflow("mint_saga", outcome, o.now().Sub(start).Seconds())
}

func (o *Orchestrator) buildRecord(p domain.ProjectAttributes, owner solanago.PublicKey, doc *domain.MetadataDocument, res *MintResult) *domain.OffChainRecord {
	return &domain.OffChainRecord{
		Mint:            res.TokenID.String(),
		Owner:           owner.String(),
		ProjectName:     p.ProjectName,
		Location:        p.Location,
		VintageYear:     p.VintageYear,
		CarbonAmount:    p.CarbonAmount,
		Standard:        p.Standard,
		ProjectType:     p.ProjectType,
		Description:     doc.Description,
		Verification:    p.Verification,
		ImageLocator:    res.ImageLocator,
		MetadataLocator: res.MetadataLocator,
		Metadata:        doc.Snapshot(res.MetadataLocator),
		Status:          domain.StatusActive,
	}
}

// recordActivity is best effort; backfill does not see client-side mints
// because they never touch the exchange program.
func (o *Orchestrator) recordActivity(ctx context.Context, log *zap.Logger, issuer, recipient solanago.PublicKey, res *MintResult) {
	if o.activity == nil {
		return
	}
	mint := res.TokenID.String()
	sig := res.Signature.String()
	ev := &domain.ActivityEvent{
		EventID:      idhash.ComputeActivityID(sig, 0, domain.ActivityMint, mint),
		Kind:         domain.ActivityMint,
		Mint:         mint,
		Actor:        issuer.String(),
		Counterparty: recipient.String(),
		Signature:    sig,
		Timestamp:    o.now().UnixMilli(),
	}
	if err := o.activity.InsertBulk(ctx, []*domain.ActivityEvent{ev}); err != nil {
		log.Warn("mint activity not recorded", zap.String("mint", mint), zap.Error(err))
	}
}

// BuildDocument assembles the metadata document of a credit.
func BuildDocument(p domain.ProjectAttributes, imageLocator, imageType, symbol string, creator solanago.PublicKey) *domain.MetadataDocument {
	description := p.Description
	if description == "" {
		description = "Carbon credit from " + p.ProjectName
	}
	attrs := []domain.Attribute{
		{TraitType: domain.TraitProjectName, Value: p.ProjectName},
		{TraitType: domain.TraitProjectType, Value: string(p.ProjectType)},
		{TraitType: domain.TraitLocation, Value: p.Location.String()},
		{TraitType: domain.TraitCreditAmount, Value: strconv.FormatFloat(p.CarbonAmount, 'f', -1, 64), DisplayType: "number"},
		{TraitType: domain.TraitStandard, Value: string(p.Standard)},
		{TraitType: domain.TraitCertificationBody, Value: p.Verification.CertificationBody},
		{TraitType: domain.TraitVerificationDate, Value: p.Verification.VerificationDate, DisplayType: "date"},
	}
	if p.VintageYear > 0 {
		attrs = append(attrs, domain.Attribute{
			TraitType: domain.TraitVintageYear, Value: strconv.Itoa(p.VintageYear), DisplayType: "number",
		})
	}

	return &domain.MetadataDocument{
		Name:        p.ProjectName,
		Symbol:      symbol,
		Description: description,
		Image:       imageLocator,
		ExternalURL: p.ExternalURL,
		Attributes:  attrs,
		Properties: domain.DocumentProperties{
			Category: domain.DocumentCategory,
			Files:    []domain.DocumentFile{{URI: imageLocator, Type: imageType}},
			Creators: []domain.DocumentCreator{{Address: creator.String(), Share: 100}},
		},
	}
}

func symbol(req MintRequest) string {
	if s := strings.TrimSpace(req.Symbol); s != "" {
		return s
	}
	return DefaultSymbol
}

func imageType(req MintRequest) string {
	if req.ImageType != "" {
		return req.ImageType
	}
	return "image/png"
}

func imageName(req MintRequest) string {
	if req.ImageName != "" {
		return req.ImageName
	}
	return "image"
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
