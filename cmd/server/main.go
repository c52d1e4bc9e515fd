// Package main runs the exchange service: the sync scheduler, the program
// log subscriber and the HTTP facade over enriched assets and listings.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"carbon-credit-exchange/internal/api"
	"carbon-credit-exchange/internal/app"
	"carbon-credit-exchange/internal/config"
	"carbon-credit-exchange/internal/logging"
	"carbon-credit-exchange/internal/solana"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fatal("load .env", err)
	}

	configPath := flag.String("config", os.Getenv("CCX_CONFIG"), "YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	noSync := flag.Bool("no-sync", false, "Disable the sync scheduler and log subscription")
	flag.Parse()

	if *useMemory {
		os.Setenv(config.EnvPrefix+"USE_MEMORY", "true")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("load config", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fatal("build logger", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, !*noSync); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, sync bool) error {
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close components", zap.Error(err))
		}
	}()

	var status func() any
	if sync {
		wsCfg := solana.DefaultWSConfig()
		wsCfg.Commitment = cfg.Solana.Commitment
		ws := solana.NewWSClient(cfg.Solana.WSURL, &wsCfg, logger.Named("ws"))
		defer ws.Close()

		syncer, err := a.Syncer(ws)
		if err != nil {
			return err
		}
		if err := syncer.Start(ctx, cfg.Sync.Schedule); err != nil {
			return err
		}
		defer syncer.Stop()
		status = func() any { return syncer.Status() }

		go func() {
			if err := syncer.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("log subscription ended", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.New(api.Options{
			Enricher: a.Engine,
			Records:  a.Records,
			Market:   a.Market,
			Status:   status,
			Logger:   logger.Named("api"),
		}).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func fatal(msg string, err error) {
	os.Stderr.WriteString(msg + ": " + err.Error() + "\n")
	os.Exit(1)
}
