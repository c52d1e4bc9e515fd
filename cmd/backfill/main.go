// Package main runs one sync pass: placeholder records for issued tokens,
// replay of exchange program transactions since the stored cursor and
// cleanup of stale listing flags.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"carbon-credit-exchange/internal/app"
	"carbon-credit-exchange/internal/config"
	"carbon-credit-exchange/internal/logging"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fatal("load .env", err)
	}

	configPath := flag.String("config", os.Getenv("CCX_CONFIG"), "YAML config file")
	issuer := flag.String("issuer", "", "Update authority whose tokens get placeholder records (overrides config)")
	timeout := flag.Duration("timeout", 10*time.Minute, "Upper bound for the pass")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("load config", err)
	}
	if *issuer != "" {
		cfg.Sync.Issuer = *issuer
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fatal("build logger", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open", zap.Error(err))
	}
	defer a.Close()

	syncer, err := a.Syncer(nil)
	if err != nil {
		logger.Fatal("build syncer", zap.Error(err))
	}
	defer syncer.Stop()

	res, err := syncer.RunOnce(ctx)
	if err != nil {
		logger.Error("sync pass failed", zap.Error(err),
			zap.Int("transactions", res.Transactions),
			zap.Int("events", res.Events))
		os.Exit(1)
	}
	logger.Info("sync pass done",
		zap.Int("placeholders", res.Placeholders),
		zap.Int("transactions", res.Transactions),
		zap.Int("events", res.Events),
		zap.Int("undecodable", res.Undecodable),
		zap.Int("unlisted", res.Unlisted),
		zap.Duration("duration", res.Duration))
}

func fatal(msg string, err error) {
	os.Stderr.WriteString(msg + ": " + err.Error() + "\n")
	os.Exit(1)
}
