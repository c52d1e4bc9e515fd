package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/observability"
	"carbon-credit-exchange/internal/storage"
)

// ActivityStore implements storage.ActivityStore using ClickHouse.
// The table is a ReplacingMergeTree keyed by (mint, event_id); known ids
// are also filtered before insert so reads never see duplicates.
type ActivityStore struct {
	conn *Conn
}

// NewActivityStore creates a new ActivityStore.
func NewActivityStore(conn *Conn) *ActivityStore {
	return &ActivityStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ActivityStore = (*ActivityStore)(nil)

// InsertBulk adds events, skipping known event ids.
func (s *ActivityStore) InsertBulk(ctx context.Context, events []*domain.ActivityEvent) (err error) {
	defer observe("activity_insert", time.Now(), &err)

	if len(events) == 0 {
		return nil
	}

	ids := make([]string, 0, len(events))
	batchSeen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" || e.Mint == "" {
			return storage.ErrInvalidInput
		}
		if _, dup := batchSeen[e.EventID]; dup {
			continue
		}
		batchSeen[e.EventID] = struct{}{}
		ids = append(ids, e.EventID)
	}

	known, err := s.knownIDs(ctx, ids)
	if err != nil {
		return err
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO marketplace_activity (
			event_id, kind, mint, actor, counterparty, price, signature, slot, timestamp_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	appended := 0
	for _, e := range events {
		if _, skip := known[e.EventID]; skip {
			continue
		}
		known[e.EventID] = struct{}{}
		err = batch.Append(
			e.EventID, string(e.Kind), e.Mint, e.Actor, e.Counterparty,
			e.Price, e.Signature, e.Slot, e.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
		appended++
	}
	if appended == 0 {
		return batch.Abort()
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func (s *ActivityStore) knownIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	known := make(map[string]struct{})
	rows, err := s.conn.Query(ctx, `
		SELECT event_id FROM marketplace_activity WHERE event_id IN (?)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("query known events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event id: %w", err)
		}
		known[id] = struct{}{}
	}
	return known, rows.Err()
}

// GetByMint retrieves all events of a token, ordered by slot ASC.
func (s *ActivityStore) GetByMint(ctx context.Context, mint string) (events []*domain.ActivityEvent, err error) {
	defer observe("activity_by_mint", time.Now(), &err)

	return s.query(ctx, `
		SELECT event_id, kind, mint, actor, counterparty, price, signature, slot, timestamp_ms
		FROM marketplace_activity FINAL
		WHERE mint = ?
		ORDER BY slot ASC, timestamp_ms ASC
	`, mint)
}

// Recent returns the latest events, newest first.
func (s *ActivityStore) Recent(ctx context.Context, limit int) (events []*domain.ActivityEvent, err error) {
	defer observe("activity_recent", time.Now(), &err)

	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx, `
		SELECT event_id, kind, mint, actor, counterparty, price, signature, slot, timestamp_ms
		FROM marketplace_activity FINAL
		ORDER BY slot DESC, timestamp_ms DESC
		LIMIT ?
	`, limit)
}

// SalesSummary aggregates SALE events since the given Unix ms.
func (s *ActivityStore) SalesSummary(ctx context.Context, since int64) (summary *domain.SalesSummary, err error) {
	defer observe("activity_sales_summary", time.Now(), &err)

	var (
		sales  uint64
		volume uint64
		buyers uint64
	)
	row := s.conn.QueryRow(ctx, `
		SELECT count(), sum(price), uniqExact(counterparty)
		FROM marketplace_activity FINAL
		WHERE kind = ? AND timestamp_ms >= ?
	`, string(domain.ActivitySale), since)
	if err := row.Scan(&sales, &volume, &buyers); err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}

	summary = &domain.SalesSummary{Sales: int64(sales), UniqueBuyers: int64(buyers)}
	if sales > 0 {
		total := domain.LamportsToSOL(volume)
		summary.VolumeSOL = total.InexactFloat64()
		summary.AverageSOL = total.DivRound(decimal.NewFromInt(int64(sales)), 9).InexactFloat64()
	}
	return summary, nil
}

func (s *ActivityStore) query(ctx context.Context, query string, args ...interface{}) ([]*domain.ActivityEvent, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var events []*domain.ActivityEvent
	for rows.Next() {
		var (
			e    domain.ActivityEvent
			kind string
		)
		if err := rows.Scan(
			&e.EventID, &kind, &e.Mint, &e.Actor, &e.Counterparty,
			&e.Price, &e.Signature, &e.Slot, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		e.Kind = domain.ActivityKind(kind)
		events = append(events, &e)
	}
	return events, rows.Err()
}

func observe(operation string, start time.Time, errp *error) {
	observability.RecordDBQuery("clickhouse", operation, time.Since(start).Seconds(), *errp)
}
