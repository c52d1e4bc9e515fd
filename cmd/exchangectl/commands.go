package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	solanago "github.com/gagliardetto/solana-go"

	"carbon-credit-exchange/internal/app"
	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/orchestrator"
)

func runInit(ctx context.Context, a *app.App) error {
	signer, err := loadSigner()
	if err != nil {
		return err
	}
	defer signer.Wipe()
	return printResult(a.Builder.InitializeExchange(ctx, signer))
}

var (
	projectPath string
	imagePath   string
	recipient   string
	symbol      string
)

func mintFlags(fs *flag.FlagSet) {
	keypairFlag(fs)
	fs.StringVar(&projectPath, "project", "", "project attributes JSON file")
	fs.StringVar(&imagePath, "image", "", "credit image file")
	fs.StringVar(&recipient, "recipient", "", "token recipient (defaults to the keypair)")
	fs.StringVar(&symbol, "symbol", orchestrator.DefaultSymbol, "token symbol")
}

func checkMint() error {
	if projectPath == "" || imagePath == "" {
		return errors.New("-project and -image are required")
	}
	return nil
}

func runMint(ctx context.Context, a *app.App) error {
	var project domain.ProjectAttributes
	data, err := os.ReadFile(projectPath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &project); err != nil {
		return fmt.Errorf("parse %s: %w", projectPath, err)
	}
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return err
	}

	signer, err := loadSigner()
	if err != nil {
		return err
	}
	defer signer.Wipe()

	req := orchestrator.MintRequest{
		Issuer:    signer,
		Symbol:    symbol,
		Project:   project,
		Image:     image,
		ImageName: filepath.Base(imagePath),
		ImageType: mime.TypeByExtension(filepath.Ext(imagePath)),
	}
	if recipient != "" {
		req.Recipient, err = solanago.PublicKeyFromBase58(recipient)
		if err != nil {
			return fmt.Errorf("recipient: %w", err)
		}
	}

	res, err := a.Orchestrator.Mint(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{
		"runId":           res.RunID,
		"tokenId":         res.TokenID.String(),
		"signature":       res.Signature.String(),
		"imageLocator":    res.ImageLocator,
		"metadataLocator": res.MetadataLocator,
	})
}

var price string

func listFlags(fs *flag.FlagSet) {
	mintOnlyFlags(fs)
	fs.StringVar(&price, "price", "", "price in SOL, e.g. 2.5")
}

func runList(ctx context.Context, a *app.App) error {
	lamports, err := domain.ParseSOL(price)
	if err != nil {
		return err
	}
	mint, err := mintKey()
	if err != nil {
		return err
	}
	signer, err := loadSigner()
	if err != nil {
		return err
	}
	defer signer.Wipe()
	return printResult(a.Builder.List(ctx, signer, mint, lamports))
}

func runCancel(ctx context.Context, a *app.App) error {
	mint, err := mintKey()
	if err != nil {
		return err
	}
	signer, err := loadSigner()
	if err != nil {
		return err
	}
	defer signer.Wipe()
	return printResult(a.Builder.CancelListing(ctx, signer, mint))
}

func runBuy(ctx context.Context, a *app.App) error {
	mint, err := mintKey()
	if err != nil {
		return err
	}
	signer, err := loadSigner()
	if err != nil {
		return err
	}
	defer signer.Wipe()
	return printResult(a.Builder.Buy(ctx, signer, mint))
}

var beneficiary string

func retireFlags(fs *flag.FlagSet) {
	mintOnlyFlags(fs)
	fs.StringVar(&beneficiary, "beneficiary", "", "retirement beneficiary (defaults to the keypair)")
}

func runRetire(ctx context.Context, a *app.App) error {
	mint, err := mintKey()
	if err != nil {
		return err
	}
	signer, err := loadSigner()
	if err != nil {
		return err
	}
	defer signer.Wipe()

	ben := signer.PublicKey()
	if beneficiary != "" {
		ben, err = solanago.PublicKeyFromBase58(beneficiary)
		if err != nil {
			return fmt.Errorf("beneficiary: %w", err)
		}
	}
	return printResult(a.Builder.Retire(ctx, signer, mint, ben))
}

func showFlags(fs *flag.FlagSet) {
	fs.StringVar(&mintFlag, "mint", "", "credit mint; exchange stats are shown when empty")
}

func runShow(ctx context.Context, a *app.App) error {
	if mintFlag == "" {
		stats, err := a.Market.Exchange(ctx)
		if err != nil {
			return err
		}
		listings, err := a.Market.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"exchange": stats.Exchange, "listings": listings})
	}

	mint, err := mintKey()
	if err != nil {
		return err
	}
	view, err := a.Engine.Enrich(ctx, mint)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"tokenId":      view.TokenID,
		"projectName":  view.Record.ProjectName,
		"owner":        view.Record.Owner,
		"category":     view.Category,
		"carbonAmount": view.CarbonAmount,
		"imageUrl":     view.ImageURL,
		"metadataUrl":  view.MetadataURL,
		"isListed":     view.IsListed,
		"isRetired":    view.IsRetired,
		"canList":      view.CanList(),
		"listing":      view.Listing,
		"retirement":   view.Retirement,
	})
}
