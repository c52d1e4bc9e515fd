// Package backfill keeps off-chain records in step with the ledger. A
// periodic scan creates placeholder records for issued tokens and replays
// exchange program transactions since a cursor; a log subscription applies
// the same events as they happen.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/solana"
	"carbon-credit-exchange/internal/storage"
)

// Defaults.
const (
	DefaultSchedule = "@every 1m"
	DefaultWorkers  = 4
	DefaultPageSize = 1000
	defaultRunLimit = 5 * time.Minute
)

// Chain is the account state the scan reads. *ledger.Context implements it.
type Chain interface {
	IssuedMetadata(ctx context.Context, issuer solanago.PublicKey) ([]*domain.TokenMetadata, error)
	Listing(ctx context.Context, mint solanago.PublicKey) (*domain.Listing, error)
}

// History is the transaction history of the exchange program.
// *solana.HTTPClient implements it.
type History interface {
	GetSignaturesForAddress(ctx context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
}

// Syncer runs the scan and the subscription.
type Syncer struct {
	chain     Chain
	history   History
	logs      solana.WSClient
	records   storage.RecordStore
	activity  storage.ActivityStore
	cursors   storage.SyncCursorStore
	programID solanago.PublicKey
	issuer    solanago.PublicKey
	pageSize  int
	logger    *zap.Logger

	pool     pond.Pool
	inflight *xsync.Map[string, struct{}] // signatures being applied
	cron     *cron.Cron

	mu     sync.Mutex
	status Status
}

// Options contains configuration for creating a Syncer.
type Options struct {
	// Required
	Chain     Chain
	Records   storage.RecordStore
	ProgramID solanago.PublicKey

	// Optional
	History  History               // signature replay is skipped when nil
	Logs     solana.WSClient       // needed by Listen
	Activity storage.ActivityStore // events are also recorded as activity
	Cursors  storage.SyncCursorStore
	Issuer   solanago.PublicKey // placeholder scan is skipped when zero
	Workers  int
	PageSize int
	Logger   *zap.Logger
}

// New creates a Syncer.
func New(opts Options) (*Syncer, error) {
	if opts.Chain == nil || opts.Records == nil {
		return nil, errors.New("backfill: chain and records are required")
	}
	if opts.ProgramID.IsZero() {
		return nil, errors.New("backfill: program id is required")
	}
	if opts.History != nil && opts.Cursors == nil {
		return nil, errors.New("backfill: signature replay needs a cursor store")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Syncer{
		chain:     opts.Chain,
		history:   opts.History,
		logs:      opts.Logs,
		records:   opts.Records,
		activity:  opts.Activity,
		cursors:   opts.Cursors,
		programID: opts.ProgramID,
		issuer:    opts.Issuer,
		pageSize:  pageSize,
		logger:    logger,
		pool:      pond.NewPool(workers, pond.WithQueueSize(pageSize)),
		inflight:  xsync.NewMap[string, struct{}](),
	}, nil
}

// Start schedules RunOnce on spec (cron syntax with an optional seconds
// field, or descriptors such as "@every 1m"). Overlapping runs are skipped.
func (s *Syncer) Start(ctx context.Context, spec string) error {
	if spec == "" {
		spec = DefaultSchedule
	}
	logger := cron.PrintfLogger(zap.NewStdLog(s.logger))
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	_, err := s.cron.AddFunc(spec, func() {
		rctx, cancel := context.WithTimeout(ctx, defaultRunLimit)
		defer cancel()
		if _, err := s.RunOnce(rctx); err != nil {
			s.logger.Warn("scheduled sync failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sync %q: %w", spec, err)
	}
	s.cron.Start()
	s.logger.Info("sync scheduled", zap.String("spec", spec))
	return nil
}

// Stop stops the schedule, waits for a running scan and releases workers.
func (s *Syncer) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.pool.StopAndWait()
}

// Result contains statistics from one scan.
type Result struct {
	Placeholders int           `json:"placeholders"` // records created for issued tokens
	Transactions int           `json:"transactions"` // program transactions replayed
	Events       int           `json:"events"`       // events applied
	Undecodable  int           `json:"undecodable"`  // event log lines that failed to decode
	Unlisted     int           `json:"unlisted"`     // stale listing flags cleared
	Duration     time.Duration `json:"duration"`
}

// Status summarizes completed scans.
type Status struct {
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastRun   time.Time `json:"lastRun,omitempty"`
	LastError string    `json:"lastError,omitempty"`
	Last      *Result   `json:"last,omitempty"`
}

// Status returns a snapshot of scan history.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	if st.Last != nil {
		last := *st.Last
		st.Last = &last
	}
	return st
}

func (s *Syncer) recordRun(at time.Time, res *Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Runs++
	s.status.LastRun = at
	s.status.Last = res
	s.status.LastError = ""
	if err != nil {
		s.status.Failures++
		s.status.LastError = err.Error()
	}
}

// RunOnce runs one full scan. Steps run in order and the first failure
// stops the scan; progress made before it is kept.
func (s *Syncer) RunOnce(ctx context.Context) (res *Result, err error) {
	start := time.Now()
	res = &Result{}
	defer func() {
		res.Duration = time.Since(start)
		s.recordRun(start, res, err)
	}()

	if !s.issuer.IsZero() {
		if err := s.scanIssued(ctx, res); err != nil {
			return res, fmt.Errorf("scan issued metadata: %w", err)
		}
	}
	if s.history != nil {
		if err := s.scanSignatures(ctx, res); err != nil {
			return res, fmt.Errorf("scan program signatures: %w", err)
		}
	}
	if err := s.clearStaleListings(ctx, res); err != nil {
		return res, fmt.Errorf("clear stale listings: %w", err)
	}

	s.logger.Info("sync pass completed",
		zap.Int("placeholders", res.Placeholders),
		zap.Int("transactions", res.Transactions),
		zap.Int("events", res.Events),
		zap.Int("unlisted", res.Unlisted),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}
