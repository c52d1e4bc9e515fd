package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/idhash"
	"carbon-credit-exchange/internal/observability"
	"carbon-credit-exchange/internal/solana"
	"carbon-credit-exchange/internal/storage"
)

// cursorSource keys the signature replay cursor.
const cursorSource = "program_signatures"

// scanIssued creates a placeholder record for every issued token that has
// none.
func (s *Syncer) scanIssued(ctx context.Context, res *Result) error {
	issued, err := s.chain.IssuedMetadata(ctx, s.issuer)
	if err != nil {
		observability.RecordSyncError("metadata")
		return err
	}

	for _, md := range issued {
		err := s.records.Create(ctx, placeholder(md))
		switch {
		case err == nil:
			res.Placeholders++
			observability.RecordBackfill("placeholder")
			s.logger.Info("placeholder record created", zap.String("mint", md.Mint))
		case errors.Is(err, storage.ErrDuplicateKey):
		default:
			observability.RecordSyncError("records")
			return fmt.Errorf("create placeholder %s: %w", md.Mint, err)
		}
	}
	return nil
}

// placeholder builds the record of a token known only from its on-chain
// metadata. Enums stay empty so enrichment falls back to the document.
func placeholder(md *domain.TokenMetadata) *domain.OffChainRecord {
	return &domain.OffChainRecord{
		Mint:            md.Mint,
		ProjectName:     md.Name,
		MetadataLocator: md.URI,
		Metadata: domain.MetadataSnapshot{
			Name:   md.Name,
			Symbol: md.Symbol,
			URI:    md.URI,
		},
		Status:      domain.StatusActive,
		Placeholder: true,
	}
}

// scanSignatures replays program transactions newer than the cursor,
// oldest first, and advances the cursor past each applied transaction.
func (s *Syncer) scanSignatures(ctx context.Context, res *Result) error {
	key := idhash.ComputeCursorKey(cursorSource, s.programID.String())
	var until string
	cursor, err := s.cursors.GetCursor(ctx, key)
	switch {
	case err == nil:
		until = cursor.Signature
	case errors.Is(err, storage.ErrNotFound):
	default:
		return fmt.Errorf("load cursor: %w", err)
	}

	sigs, err := s.newSignatures(ctx, until)
	if err != nil {
		observability.RecordSyncError("signatures")
		return err
	}
	if len(sigs) == 0 {
		observability.UpdateLastSync(time.Now().Unix())
		return nil
	}

	txs, err := s.fetchTransactions(ctx, sigs)
	for i, sig := range sigs {
		if txs[i] == nil && sig.Err == nil {
			// fetch failed; later transactions wait for the next pass
			break
		}
		if txs[i] != nil && txs[i].Meta != nil && txs[i].Meta.Err == nil {
			n, bad, applyErr := s.apply(ctx, sig.Signature, sig.Slot, blockTime(sig, txs[i]), txs[i].Meta.LogMessages, "scan")
			res.Events += n
			res.Undecodable += bad
			if applyErr != nil {
				return applyErr
			}
		}
		res.Transactions++
		if setErr := s.cursors.SetCursor(ctx, key, &storage.SyncCursor{Slot: sig.Slot, Signature: sig.Signature}); setErr != nil {
			return fmt.Errorf("save cursor: %w", setErr)
		}
	}
	if err != nil {
		observability.RecordSyncError("transactions")
		return err
	}
	observability.UpdateLastSync(time.Now().Unix())
	return nil
}

// newSignatures pages backwards from the newest signature down to until
// and returns the result oldest first.
func (s *Syncer) newSignatures(ctx context.Context, until string) ([]solana.SignatureInfo, error) {
	var all []solana.SignatureInfo
	var before string
	for {
		page, err := s.history.GetSignaturesForAddress(ctx, s.programID.String(), &solana.SignaturesOpts{
			Before: before,
			Until:  until,
			Limit:  s.pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("get signatures: %w", err)
		}
		all = append(all, page...)
		if len(page) < s.pageSize {
			break
		}
		before = page[len(page)-1].Signature
	}

	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// fetchTransactions loads the transactions of sigs on the worker pool.
// Failed transactions are not fetched. Entries whose fetch failed are nil
// and the first error is returned.
func (s *Syncer) fetchTransactions(ctx context.Context, sigs []solana.SignatureInfo) ([]*solana.Transaction, error) {
	txs := make([]*solana.Transaction, len(sigs))
	errs := make([]error, len(sigs))

	group := s.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for i, sig := range sigs {
		if sig.Err != nil {
			continue
		}
		i, sig := i, sig
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				errs[i] = err
				return
			}
			tx, err := s.history.GetTransaction(groupCtx, sig.Signature)
			if err != nil {
				errs[i] = fmt.Errorf("get transaction %s: %w", sig.Signature, err)
				return
			}
			txs[i] = tx
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return txs, err
	}
	for _, err := range errs {
		if err != nil {
			return txs, err
		}
	}
	return txs, nil
}

func blockTime(sig solana.SignatureInfo, tx *solana.Transaction) int64 {
	if tx.BlockTime > 0 {
		return tx.BlockTime
	}
	if sig.BlockTime != nil {
		return *sig.BlockTime
	}
	return 0
}

// clearStaleListings clears the listing flag of records whose listing
// account is gone. Cancellations emit no event, so this is the only path
// that observes them.
func (s *Syncer) clearStaleListings(ctx context.Context, res *Result) error {
	listed, err := s.records.Query(ctx, domain.RecordFilter{ListedOnly: true})
	if err != nil {
		return err
	}
	for _, r := range listed {
		mint, err := parseMint(r.Mint)
		if err != nil {
			s.logger.Warn("record with malformed mint", zap.String("mint", r.Mint))
			continue
		}
		listing, err := s.chain.Listing(ctx, mint)
		if err != nil {
			observability.RecordSyncError("listings")
			return fmt.Errorf("read listing %s: %w", r.Mint, err)
		}
		if listing != nil {
			continue
		}
		if err := s.records.MarkUnlisted(ctx, r.Mint); err != nil {
			return fmt.Errorf("mark unlisted %s: %w", r.Mint, err)
		}
		res.Unlisted++
		observability.RecordEventProcessed("ListingClosed", "scan")
	}
	return nil
}
