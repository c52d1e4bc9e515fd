// Package reconcile merges authoritative on-chain state with the mutable
// off-chain record of a token into an EnrichedAssetView. Views are built
// per request and never cached.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/alitto/pond/v2"
	solanago "github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"carbon-credit-exchange/internal/contentstore"
	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/observability"
	"carbon-credit-exchange/internal/storage"
)

// DefaultWorkers bounds EnrichAll concurrency.
const DefaultWorkers = 8

// ChainReader reads the on-chain accounts of a token. Absent accounts are
// (nil, nil). *ledger.Context implements it.
type ChainReader interface {
	Listing(ctx context.Context, mint solanago.PublicKey) (*domain.Listing, error)
	Retirement(ctx context.Context, mint solanago.PublicKey) (*domain.Retirement, error)
	Metadata(ctx context.Context, mint solanago.PublicKey) (*domain.TokenMetadata, error)
}

// Engine enriches tokens.
type Engine struct {
	chain   ChainReader
	records storage.RecordStore
	docs    contentstore.Store
	gateway contentstore.Gateway
	workers int
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithGateway sets the gateway used to resolve locators.
func WithGateway(g contentstore.Gateway) Option {
	return func(e *Engine) {
		e.gateway = g
	}
}

// WithDocuments lets the engine read on-chain attributes from the metadata
// document when the off-chain record lacks them.
func WithDocuments(s contentstore.Store) Option {
	return func(e *Engine) {
		e.docs = s
	}
}

// WithWorkers bounds batch concurrency.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// New creates an Engine.
func New(chain ChainReader, records storage.RecordStore, opts ...Option) *Engine {
	e := &Engine{
		chain:   chain,
		records: records,
		gateway: contentstore.NewGateway(""),
		workers: DefaultWorkers,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich builds the view of one token. A missing off-chain record is a
// *MissError; any failed ledger read fails the call.
func (e *Engine) Enrich(ctx context.Context, tokenID solanago.PublicKey) (*domain.EnrichedAssetView, error) {
	return e.enrich(ctx, tokenID, false)
}

// Item is one EnrichAll result. Exactly one of View and Err is set.
type Item struct {
	TokenID string
	View    *domain.EnrichedAssetView
	Err     error
}

// EnrichAll enriches tokenIDs on a bounded pool. Results follow input
// order. A failed ledger read degrades the item (ListingKnown or
// RetirementKnown false) instead of failing it; misses and store failures
// are reported per item.
func (e *Engine) EnrichAll(ctx context.Context, tokenIDs []solanago.PublicKey) []Item {
	items := make([]Item, len(tokenIDs))
	if len(tokenIDs) == 0 {
		return items
	}

	workers := e.workers
	if workers > len(tokenIDs) {
		workers = len(tokenIDs)
	}
	pool := pond.NewPool(workers)
	defer pool.StopAndWait()

	group := pool.NewGroup()
	for i, id := range tokenIDs {
		i, id := i, id
		group.Submit(func() {
			view, err := e.enrich(ctx, id, true)
			items[i] = Item{TokenID: id.String(), View: view, Err: err}
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, pond.ErrGroupStopped) {
		e.logger.Warn("batch enrich interrupted", zap.Error(err))
	}
	return items
}

func (e *Engine) enrich(ctx context.Context, tokenID solanago.PublicKey, degrade bool) (*domain.EnrichedAssetView, error) {
	mint := tokenID.String()

	record, err := e.records.Get(ctx, mint)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			observability.RecordEnrich("miss")
			return nil, &MissError{TokenID: mint}
		}
		observability.RecordEnrich("error")
		return nil, fmt.Errorf("load record %s: %w", mint, err)
	}

	raw, err := e.readChain(ctx, tokenID, record, degrade)
	if err != nil {
		observability.RecordEnrich("error")
		return nil, fmt.Errorf("enrich %s: %w", mint, err)
	}

	view := Merge(mint, raw, record, e.gateway)
	if !view.ListingKnown || !view.RetirementKnown {
		observability.RecordEnrich("degraded")
	} else {
		observability.RecordEnrich("ok")
	}
	return view, nil
}

// readChain fetches listing and retirement concurrently, plus metadata
// when the record cannot resolve every display field on its own.
func (e *Engine) readChain(ctx context.Context, tokenID solanago.PublicKey, record *domain.OffChainRecord, degrade bool) (*RawOnChain, error) {
	var (
		g                         errgroup.Group
		raw                       RawOnChain
		listingErr, retirementErr error
	)

	g.Go(func() error {
		raw.Listing, listingErr = e.chain.Listing(ctx, tokenID)
		return listingErr
	})
	g.Go(func() error {
		raw.Retirement, retirementErr = e.chain.Retirement(ctx, tokenID)
		return retirementErr
	})
	if needsMetadata(record) {
		g.Go(func() error {
			raw.Metadata, raw.Document = e.readMetadata(ctx, tokenID, record)
			return nil
		})
	}

	if err := g.Wait(); err != nil && !degrade {
		return nil, err
	}

	raw.ListingKnown = listingErr == nil
	raw.RetirementKnown = retirementErr == nil
	if listingErr != nil {
		raw.Listing = nil
		e.logger.Warn("listing read failed, degrading",
			zap.String("mint", tokenID.String()), zap.Error(listingErr))
	}
	if retirementErr != nil {
		raw.Retirement = nil
		e.logger.Warn("retirement read failed, degrading",
			zap.String("mint", tokenID.String()), zap.Error(retirementErr))
	}
	return &raw, nil
}

func needsMetadata(r *domain.OffChainRecord) bool {
	return !hasImage(r) ||
		r.MetadataLocator == "" ||
		r.ProjectType == "" ||
		r.CarbonAmount <= 0
}

func hasImage(r *domain.OffChainRecord) bool {
	return r.ImageLocator != "" || r.Metadata.Image != ""
}

// readMetadata is best effort: it only feeds fallbacks.
func (e *Engine) readMetadata(ctx context.Context, tokenID solanago.PublicKey, record *domain.OffChainRecord) (*domain.TokenMetadata, *domain.MetadataDocument) {
	md, err := e.chain.Metadata(ctx, tokenID)
	if err != nil {
		e.logger.Debug("metadata read failed", zap.String("mint", tokenID.String()), zap.Error(err))
		return nil, nil
	}
	if md == nil || e.docs == nil || md.URI == "" {
		return md, nil
	}
	if record.ProjectType != "" && record.CarbonAmount > 0 && hasImage(record) {
		return md, nil
	}

	data, err := e.docs.Fetch(ctx, md.URI)
	if err != nil {
		e.logger.Debug("metadata document fetch failed", zap.String("uri", md.URI), zap.Error(err))
		return md, nil
	}
	doc, err := domain.ParseMetadataDocument(data)
	if err != nil {
		e.logger.Debug("metadata document invalid", zap.String("uri", md.URI), zap.Error(err))
		return md, nil
	}
	return md, doc
}
