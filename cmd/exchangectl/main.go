// Package main operates the exchange from the command line with a local
// keypair file.
//
// Usage:
//
//	exchangectl <command> [flags]
//
// Commands: init, mint, list, cancel, buy, retire, show.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	solanago "github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"carbon-credit-exchange/internal/app"
	"carbon-credit-exchange/internal/config"
	"carbon-credit-exchange/internal/ledger"
	"carbon-credit-exchange/internal/logging"
	"carbon-credit-exchange/internal/orchestrator"
	"carbon-credit-exchange/internal/txbuilder"
)

type command struct {
	usage string
	flags func(fs *flag.FlagSet)
	check func() error // validates parsed flags, optional
	run   func(ctx context.Context, a *app.App) error
}

var commands = map[string]command{
	"init":   {"initialize the exchange account", keypairFlag, nil, runInit},
	"mint":   {"upload content, mint a credit and write its record", mintFlags, checkMint, runMint},
	"list":   {"list a credit for sale", listFlags, requireMint, runList},
	"cancel": {"cancel a listing", mintOnlyFlags, requireMint, runCancel},
	"buy":    {"buy a listed credit", mintOnlyFlags, requireMint, runBuy},
	"retire": {"retire a credit", retireFlags, requireMint, runRetire},
	"show":   {"print the enriched view of a credit, or exchange stats", showFlags, nil, runShow},
}

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fatal(err)
	}
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		usage()
		os.Exit(2)
	}

	fs := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("CCX_CONFIG"), "YAML config file")
	cmd.flags(fs)
	_ = fs.Parse(os.Args[2:])
	if cmd.check != nil {
		if err := cmd.check(); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			fs.Usage()
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := withApp(ctx, *configPath, func(a *app.App) error {
		return cmd.run(ctx, a)
	})
	if err != nil {
		fatal(err)
	}
}

func withApp(ctx context.Context, configPath string, fn func(*app.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, "console")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close", zap.Error(err))
		}
	}()
	return fn(a)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: exchangectl <command> [flags]")
	for _, name := range []string{"init", "mint", "list", "cancel", "buy", "retire", "show"} {
		fmt.Fprintf(os.Stderr, "  %-7s %s\n", name, commands[name].usage)
	}
}

func fatal(err error) {
	var partial *orchestrator.PartialFailureError
	if errors.As(err, &partial) {
		_ = printJSON(partial)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

// Flag values shared by several commands.
var (
	keypairPath string
	mintFlag    string
)

func keypairFlag(fs *flag.FlagSet) {
	def := os.Getenv("CCX_KEYPAIR")
	if def == "" {
		if home, err := os.UserHomeDir(); err == nil {
			def = filepath.Join(home, ".config", "solana", "id.json")
		}
	}
	fs.StringVar(&keypairPath, "keypair", def, "solana-keygen keypair file")
}

func mintOnlyFlags(fs *flag.FlagSet) {
	keypairFlag(fs)
	fs.StringVar(&mintFlag, "mint", "", "credit mint")
}

func requireMint() error {
	if mintFlag == "" {
		return errors.New("-mint is required")
	}
	return nil
}

func loadSigner() (*ledger.Keypair, error) {
	return ledger.KeypairFromFile(keypairPath)
}

func mintKey() (solanago.PublicKey, error) {
	pk, err := solanago.PublicKeyFromBase58(mintFlag)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("mint %q: %w", mintFlag, err)
	}
	return pk, nil
}

type txOutput struct {
	TokenID   string `json:"tokenId"`
	Signature string `json:"signature"`
	Status    string `json:"status"`
}

func printResult(res *txbuilder.Result, err error) error {
	if res != nil {
		if perr := printJSON(txOutput{
			TokenID:   res.TokenID.String(),
			Signature: res.Signature.String(),
			Status:    res.Status.String(),
		}); perr != nil {
			return perr
		}
	}
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
