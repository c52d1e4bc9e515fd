package backfill

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"carbon-credit-exchange/internal/observability"
	"carbon-credit-exchange/internal/solana"
)

// Listen subscribes to logs mentioning the exchange program and applies
// their events until ctx ends or the stream closes. Notifications missed
// while the connection is down are picked up by the next scan.
func (s *Syncer) Listen(ctx context.Context) error {
	if s.logs == nil {
		return errors.New("backfill: no log subscription client")
	}
	ch, err := s.logs.SubscribeLogs(ctx, solana.LogsFilter{
		Mentions: []string{s.programID.String()},
	})
	if err != nil {
		return err
	}
	s.logger.Info("subscribed to program logs", zap.String("program", s.programID.String()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-ch:
			if !ok {
				return nil
			}
			s.handleNotification(ctx, n)
		}
	}
}

func (s *Syncer) handleNotification(ctx context.Context, n solana.LogNotification) {
	observability.RecordLogNotification()
	if n.Err != nil {
		return
	}
	if _, _, err := s.apply(ctx, n.Signature, n.Slot, time.Now().Unix(), n.Logs, "subscription"); err != nil {
		s.logger.Warn("apply notification failed",
			zap.String("signature", n.Signature), zap.Error(err))
	}
}
