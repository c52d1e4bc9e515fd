// Package app wires configuration into the running components shared by
// the commands.
package app

import (
	"context"
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"carbon-credit-exchange/internal/backfill"
	"carbon-credit-exchange/internal/config"
	"carbon-credit-exchange/internal/contentstore"
	"carbon-credit-exchange/internal/ledger"
	"carbon-credit-exchange/internal/marketplace"
	"carbon-credit-exchange/internal/orchestrator"
	"carbon-credit-exchange/internal/reconcile"
	"carbon-credit-exchange/internal/solana"
	"carbon-credit-exchange/internal/storage"
	chstore "carbon-credit-exchange/internal/storage/clickhouse"
	"carbon-credit-exchange/internal/storage/memory"
	"carbon-credit-exchange/internal/storage/migrations"
	pgstore "carbon-credit-exchange/internal/storage/postgres"
	"carbon-credit-exchange/internal/txbuilder"
)

// App holds the components built from one Config.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	RPC    *solana.HTTPClient
	Ledger *ledger.Context

	Records  storage.RecordStore
	Activity storage.ActivityStore
	Cursors  storage.SyncCursorStore
	Content  contentstore.Store

	Builder      *txbuilder.Builder
	Engine       *reconcile.Engine
	Market       *marketplace.Service
	Orchestrator *orchestrator.Orchestrator

	closers []func() error
}

// Stores bundles the persistence backends.
type Stores struct {
	Records  storage.RecordStore
	Activity storage.ActivityStore
	Cursors  storage.SyncCursorStore
	Close    func() error
}

// Open builds every component. Stores are migrated before use.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	programID, err := solanago.PublicKeyFromBase58(cfg.Solana.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}
	lcfg := ledger.Config{
		RPCURL:         cfg.Solana.RPCURL,
		Commitment:     cfg.Solana.Commitment,
		ProgramID:      programID,
		ConfirmTimeout: cfg.Solana.ConfirmTimeout,
		RateLimit:      cfg.Solana.RateLimit,
	}
	if cfg.Solana.MetadataProgramID != "" {
		lcfg.MetadataProgramID, err = solanago.PublicKeyFromBase58(cfg.Solana.MetadataProgramID)
		if err != nil {
			return nil, fmt.Errorf("metadata program id: %w", err)
		}
	}
	rpc := ledger.DialRPC(lcfg)
	lc, err := ledger.Open(ctx, rpc, lcfg, ledger.WithLogger(logger.Named("ledger")))
	if err != nil {
		return nil, err
	}

	stores, err := OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	var content contentstore.Store
	if cfg.Storage.UseMemory && cfg.Content.IPFSAPI == "" {
		content = contentstore.NewMemory()
	} else {
		content = contentstore.NewIPFS(cfg.Content.IPFSAPI, logger.Named("ipfs"))
	}

	builder := txbuilder.New(lc, txbuilder.WithLogger(logger.Named("txbuilder")))
	a := &App{
		Config:   cfg,
		Logger:   logger,
		RPC:      rpc,
		Ledger:   lc,
		Records:  stores.Records,
		Activity: stores.Activity,
		Cursors:  stores.Cursors,
		Content:  content,
		Builder:  builder,
		Engine: reconcile.New(lc, stores.Records,
			reconcile.WithGateway(contentstore.NewGateway(cfg.Content.GatewayURL)),
			reconcile.WithDocuments(content),
			reconcile.WithWorkers(cfg.Sync.Workers),
			reconcile.WithLogger(logger.Named("reconcile"))),
		Market: marketplace.New(lc,
			marketplace.WithActivity(stores.Activity),
			marketplace.WithLogger(logger.Named("marketplace"))),
		Orchestrator: orchestrator.New(orchestrator.Options{
			Builder:  builder,
			Content:  content,
			Records:  stores.Records,
			Activity: stores.Activity,
			Logger:   logger.Named("orchestrator"),
		}),
		closers: []func() error{stores.Close, lc.Close},
	}
	return a, nil
}

// OpenStores connects PostgreSQL and ClickHouse, or returns memory stores
// when cfg.UseMemory is set.
func OpenStores(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*Stores, error) {
	if cfg.UseMemory {
		logger.Warn("using in-memory storage; state is lost on exit")
		return &Stores{
			Records:  memory.NewRecordStore(),
			Activity: memory.NewActivityStore(),
			Cursors:  memory.NewSyncCursorStore(),
			Close:    func() error { return nil },
		}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.ApplyPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	chConn, err := migrations.OpenClickhouse(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	return &Stores{
		Records:  pgstore.NewRecordStore(pool),
		Activity: chstore.NewActivityStore(chConn),
		Cursors:  pgstore.NewSyncCursorStore(pool),
		Close: func() error {
			err := chConn.Close()
			pool.Close()
			return err
		},
	}, nil
}

// Syncer builds the backfill syncer. logs may be nil for one-shot scans.
func (a *App) Syncer(logs solana.WSClient) (*backfill.Syncer, error) {
	opts := backfill.Options{
		Chain:     a.Ledger,
		Records:   a.Records,
		ProgramID: a.Ledger.ProgramID,
		History:   a.RPC,
		Logs:      logs,
		Activity:  a.Activity,
		Cursors:   a.Cursors,
		Workers:   a.Config.Sync.Workers,
		Logger:    a.Logger.Named("backfill"),
	}
	if a.Config.Sync.Issuer != "" {
		issuer, err := solanago.PublicKeyFromBase58(a.Config.Sync.Issuer)
		if err != nil {
			return nil, fmt.Errorf("issuer: %w", err)
		}
		opts.Issuer = issuer
	}
	return backfill.New(opts)
}

// Close releases stores and the ledger session.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
