package backfill

import (
	"context"
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/events"
	"carbon-credit-exchange/internal/observability"
	"carbon-credit-exchange/internal/storage"
)

// apply decodes the events in logs and applies them to the off-chain
// records, then records them as activity. A transaction already being
// applied by the other trigger is skipped. Returns the number of applied
// events and of undecodable event lines.
func (s *Syncer) apply(ctx context.Context, signature string, slot, blockTime int64, logs []string, trigger string) (int, int, error) {
	if _, busy := s.inflight.LoadOrStore(signature, struct{}{}); busy {
		s.logger.Debug("transaction already in flight", zap.String("signature", signature))
		return 0, 0, nil
	}
	defer s.inflight.Delete(signature)

	evs, bad := events.Parse(logs)
	if bad > 0 {
		s.logger.Warn("undecodable event data",
			zap.String("signature", signature), zap.Int("lines", bad))
	}
	if len(evs) == 0 {
		return 0, bad, nil
	}

	activity := make([]*domain.ActivityEvent, 0, len(evs))
	for i, ev := range evs {
		if err := s.applyEvent(ctx, ev); err != nil {
			observability.RecordSyncError("records")
			return i, bad, fmt.Errorf("apply %s from %s: %w", ev.EventName(), signature, err)
		}
		observability.RecordEventProcessed(ev.EventName(), trigger)

		a := ev.Activity(signature, i, slot)
		if a.Timestamp == 0 {
			a.Timestamp = blockTime * 1000
		}
		activity = append(activity, &a)
	}

	if s.activity != nil {
		if err := s.activity.InsertBulk(ctx, activity); err != nil {
			observability.RecordSyncError("activity")
			return len(evs), bad, fmt.Errorf("record activity of %s: %w", signature, err)
		}
	}
	return len(evs), bad, nil
}

// applyEvent updates the shadow flags of one record. Events for tokens
// without a record are ignored; the placeholder scan creates the record
// and later events keep it current.
func (s *Syncer) applyEvent(ctx context.Context, ev events.Event) error {
	var err error
	var mint solanago.PublicKey

	switch e := ev.(type) {
	case events.ListingCreated:
		mint = e.Mint
		err = s.records.MarkListed(ctx, e.Mint.String(), e.Price)
	case events.SaleCompleted:
		mint = e.Mint
		err = s.records.MarkSold(ctx, e.Mint.String(), e.Buyer.String())
	case events.CreditRetired:
		mint = e.Mint
		details := domain.RetirementDetails{
			RetiredBy: e.Owner.String(),
			RetiredAt: e.RetirementDate * 1000,
		}
		if !e.Beneficiary.IsZero() {
			details.Beneficiary = e.Beneficiary.String()
		}
		err = s.records.MarkRetired(ctx, e.Mint.String(), details)
	case events.CreditMinted:
		mint = e.Mint
		err = s.records.Create(ctx, &domain.OffChainRecord{
			Mint:        e.Mint.String(),
			Owner:       e.Owner.String(),
			ProjectName: e.ProjectName,
			VintageYear: int(e.VintageYear),
			Status:      domain.StatusActive,
			Placeholder: true,
		})
		if err == nil {
			observability.RecordBackfill("minted_event")
		}
		if errors.Is(err, storage.ErrDuplicateKey) {
			err = nil
		}
	default:
		return nil
	}

	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Debug("event for unknown record",
			zap.String("event", ev.EventName()), zap.String("mint", mint.String()))
		return nil
	}
	return err
}

func parseMint(s string) (solanago.PublicKey, error) {
	return solanago.PublicKeyFromBase58(s)
}
