// Package marketplace reads the exchange's active listings straight from
// the ledger and summarizes them.
package marketplace

import (
	"context"
	"fmt"
	"sort"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/storage"
)

// DefaultMetadataFetches bounds concurrent metadata reads.
const DefaultMetadataFetches = 8

// Chain is the ledger state the marketplace reads. *ledger.Context
// implements it.
type Chain interface {
	Exchange(ctx context.Context) (*domain.ExchangeState, error)
	Listings(ctx context.Context) ([]*domain.Listing, error)
	Listing(ctx context.Context, mint solanago.PublicKey) (*domain.Listing, error)
	Metadata(ctx context.Context, mint solanago.PublicKey) (*domain.TokenMetadata, error)
}

// Service answers marketplace queries.
type Service struct {
	chain    Chain
	activity storage.ActivityStore
	fetches  int
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithActivity enables sales history queries.
func WithActivity(a storage.ActivityStore) Option {
	return func(s *Service) {
		s.activity = a
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithMetadataFetches bounds concurrent metadata reads.
func WithMetadataFetches(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fetches = n
		}
	}
}

// New creates a Service.
func New(chain Chain, opts ...Option) *Service {
	s := &Service{
		chain:   chain,
		fetches: DefaultMetadataFetches,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Entry is a listing with its token metadata. Metadata is nil when the
// token has none or it could not be read.
type Entry struct {
	Listing  *domain.Listing
	Metadata *domain.TokenMetadata
	PriceSOL decimal.Decimal
}

// Listings returns every active listing, cheapest first.
func (s *Service) Listings(ctx context.Context) ([]*domain.Listing, error) {
	listings, err := s.chain.Listings(ctx)
	if err != nil {
		return nil, fmt.Errorf("read listings: %w", err)
	}
	sortListings(listings)
	return listings, nil
}

// BySeller returns the active listings of seller, cheapest first.
func (s *Service) BySeller(ctx context.Context, seller solanago.PublicKey) ([]*domain.Listing, error) {
	all, err := s.Listings(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Listing, 0, len(all))
	for _, l := range all {
		if l.Seller == seller.String() {
			out = append(out, l)
		}
	}
	return out, nil
}

// Get returns the entry of one mint, or nil when it is not listed.
func (s *Service) Get(ctx context.Context, mint solanago.PublicKey) (*Entry, error) {
	listing, err := s.chain.Listing(ctx, mint)
	if err != nil || listing == nil {
		return nil, err
	}
	entries := s.withMetadata(ctx, []*domain.Listing{listing})
	return &entries[0], nil
}

// Entries returns every active listing with its metadata. When seller is
// not zero only that seller's listings are returned.
func (s *Service) Entries(ctx context.Context, seller solanago.PublicKey) ([]Entry, error) {
	var listings []*domain.Listing
	var err error
	if seller.IsZero() {
		listings, err = s.Listings(ctx)
	} else {
		listings, err = s.BySeller(ctx, seller)
	}
	if err != nil {
		return nil, err
	}
	return s.withMetadata(ctx, listings), nil
}

// withMetadata reads metadata concurrently. A failed read leaves the
// entry's metadata nil.
func (s *Service) withMetadata(ctx context.Context, listings []*domain.Listing) []Entry {
	entries := make([]Entry, len(listings))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetches)
	for i, l := range listings {
		i, l := i, l
		entries[i] = Entry{Listing: l, PriceSOL: domain.LamportsToSOL(l.Price)}
		g.Go(func() error {
			mint, err := solanago.PublicKeyFromBase58(l.Mint)
			if err != nil {
				return nil
			}
			md, err := s.chain.Metadata(gCtx, mint)
			if err != nil {
				s.logger.Debug("listing metadata unavailable", zap.String("mint", l.Mint), zap.Error(err))
				return nil
			}
			entries[i].Metadata = md
			return nil
		})
	}
	_ = g.Wait()
	return entries
}

// Stats summarizes the active listings.
func (s *Service) Stats(ctx context.Context) (*domain.MarketplaceStats, error) {
	listings, err := s.chain.Listings(ctx)
	if err != nil {
		return nil, fmt.Errorf("read listings: %w", err)
	}
	return ComputeStats(listings), nil
}

// ExchangeStats is the exchange-wide summary.
type ExchangeStats struct {
	Exchange       *domain.ExchangeState // nil when not initialized
	ActiveListings int
}

// Exchange returns the exchange account with the active listing count.
func (s *Service) Exchange(ctx context.Context) (*ExchangeStats, error) {
	state, err := s.chain.Exchange(ctx)
	if err != nil {
		return nil, fmt.Errorf("read exchange: %w", err)
	}
	listings, err := s.chain.Listings(ctx)
	if err != nil {
		return nil, fmt.Errorf("read listings: %w", err)
	}
	return &ExchangeStats{Exchange: state, ActiveListings: len(listings)}, nil
}

// Sales summarizes sales since the given Unix ms timestamp.
func (s *Service) Sales(ctx context.Context, since int64) (*domain.SalesSummary, error) {
	if s.activity == nil {
		return &domain.SalesSummary{}, nil
	}
	return s.activity.SalesSummary(ctx, since)
}

// Recent returns the latest marketplace events, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]*domain.ActivityEvent, error) {
	if s.activity == nil {
		return nil, nil
	}
	return s.activity.Recent(ctx, limit)
}

// History returns the events of one token, oldest first.
func (s *Service) History(ctx context.Context, mint solanago.PublicKey) ([]*domain.ActivityEvent, error) {
	if s.activity == nil {
		return nil, nil
	}
	return s.activity.GetByMint(ctx, mint.String())
}

// ComputeStats summarizes listings. Prices are reported in SOL.
func ComputeStats(listings []*domain.Listing) *domain.MarketplaceStats {
	stats := &domain.MarketplaceStats{TotalListings: len(listings)}
	if len(listings) == 0 {
		return stats
	}

	total := decimal.Zero
	lo, hi := listings[0].Price, listings[0].Price
	sellers := make(map[string]struct{})
	for _, l := range listings {
		total = total.Add(decimal.NewFromUint64(l.Price))
		if l.Price < lo {
			lo = l.Price
		}
		if l.Price > hi {
			hi = l.Price
		}
		sellers[l.Seller] = struct{}{}
	}

	totalSOL := total.Shift(-9)
	stats.TotalVolume = totalSOL.InexactFloat64()
	stats.AveragePrice = totalSOL.DivRound(decimal.NewFromInt(int64(len(listings))), 9).InexactFloat64()
	stats.MinPrice = domain.LamportsToSOL(lo).InexactFloat64()
	stats.MaxPrice = domain.LamportsToSOL(hi).InexactFloat64()
	stats.ActiveSellers = len(sellers)
	return stats
}

func sortListings(listings []*domain.Listing) {
	sort.Slice(listings, func(i, j int) bool {
		if listings[i].Price != listings[j].Price {
			return listings[i].Price < listings[j].Price
		}
		return listings[i].Mint < listings[j].Mint
	})
}
