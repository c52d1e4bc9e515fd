package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/storage"
)

// RecordStore implements storage.RecordStore using PostgreSQL.
// Nested documents (location, verification, metadata, retirement) are
// stored as JSONB.
type RecordStore struct {
	pool *Pool
	now  func() time.Time
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(pool *Pool) *RecordStore {
	return &RecordStore{pool: pool, now: time.Now}
}

// Compile-time interface check.
var _ storage.RecordStore = (*RecordStore)(nil)

const recordColumns = `
	mint, owner, project_name, location, vintage_year, carbon_amount,
	verification_standard, project_type, description, verification,
	image_locator, metadata_locator, metadata, is_listed, listing_price,
	is_retired, retirement, views, favorites, status, placeholder,
	created_at, updated_at`

// Get retrieves a record by mint. Returns ErrNotFound if not exists.
func (s *RecordStore) Get(ctx context.Context, mint string) (r *domain.OffChainRecord, err error) {
	defer timed("record_get", time.Now(), &err)

	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM carbon_credits WHERE mint = $1`, mint)
	r, err = scanRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get record %s: %w", mint, err)
	}
	return r, nil
}

// Put inserts or replaces the descriptive fields of a record.
// views, favorites and created_at of an existing row are kept.
func (s *RecordStore) Put(ctx context.Context, r *domain.OffChainRecord) (err error) {
	defer timed("record_put", time.Now(), &err)

	args, err := s.insertArgs(r)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO carbon_credits (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (mint) DO UPDATE SET
			owner = EXCLUDED.owner,
			project_name = EXCLUDED.project_name,
			location = EXCLUDED.location,
			vintage_year = EXCLUDED.vintage_year,
			carbon_amount = EXCLUDED.carbon_amount,
			verification_standard = EXCLUDED.verification_standard,
			project_type = EXCLUDED.project_type,
			description = EXCLUDED.description,
			verification = EXCLUDED.verification,
			image_locator = EXCLUDED.image_locator,
			metadata_locator = EXCLUDED.metadata_locator,
			metadata = EXCLUDED.metadata,
			is_listed = EXCLUDED.is_listed,
			listing_price = EXCLUDED.listing_price,
			is_retired = EXCLUDED.is_retired,
			retirement = EXCLUDED.retirement,
			status = EXCLUDED.status,
			placeholder = EXCLUDED.placeholder,
			updated_at = EXCLUDED.updated_at
	`, args...)
	if err != nil {
		return fmt.Errorf("put record %s: %w", r.Mint, err)
	}
	return nil
}

// Create inserts a new record. Returns ErrDuplicateKey if mint exists.
func (s *RecordStore) Create(ctx context.Context, r *domain.OffChainRecord) (err error) {
	defer timed("record_create", time.Now(), &err)

	args, err := s.insertArgs(r)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO carbon_credits (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`, args...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("create record %s: %w", r.Mint, err)
	}
	return nil
}

// Query returns records matching filter, newest first.
func (s *RecordStore) Query(ctx context.Context, filter domain.RecordFilter) (records []*domain.OffChainRecord, err error) {
	defer timed("record_query", time.Now(), &err)

	var (
		where []string
		args  []interface{}
	)
	if filter.Owner != "" {
		args = append(args, filter.Owner)
		where = append(where, fmt.Sprintf("owner = $%d", len(args)))
	}
	if filter.ListedOnly {
		where = append(where, "is_listed")
	}
	if !filter.IncludeArchived {
		args = append(args, string(domain.StatusArchived))
		where = append(where, fmt.Sprintf("status <> $%d", len(args)))
	}

	query := `SELECT ` + recordColumns + ` FROM carbon_credits`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, mint ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// IncrementViews bumps the view counter.
func (s *RecordStore) IncrementViews(ctx context.Context, mint string) (int64, error) {
	return s.counter(ctx, "record_views", `
		UPDATE carbon_credits SET views = views + 1, updated_at = $2
		WHERE mint = $1
		RETURNING views
	`, mint)
}

// AdjustFavorites adds delta to the favorites counter, floored at zero.
func (s *RecordStore) AdjustFavorites(ctx context.Context, mint string, delta int64) (int64, error) {
	return s.counter(ctx, "record_favorites", `
		UPDATE carbon_credits SET favorites = GREATEST(favorites + $3, 0), updated_at = $2
		WHERE mint = $1
		RETURNING favorites
	`, mint, delta)
}

func (s *RecordStore) counter(ctx context.Context, op, query, mint string, extra ...interface{}) (n int64, err error) {
	defer timed(op, time.Now(), &err)

	if mint == "" {
		return 0, storage.ErrInvalidInput
	}
	args := append([]interface{}{mint, s.now().UnixMilli()}, extra...)
	if err = s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("%s %s: %w", op, mint, err)
	}
	return n, nil
}

// Archive soft-deletes a record.
func (s *RecordStore) Archive(ctx context.Context, mint string) error {
	return s.update(ctx, "record_archive", `
		UPDATE carbon_credits SET status = 'Archived', updated_at = $2
		WHERE mint = $1
	`, mint)
}

// MarkListed sets the listing shadow flags.
func (s *RecordStore) MarkListed(ctx context.Context, mint string, price uint64) error {
	return s.update(ctx, "record_mark_listed", `
		UPDATE carbon_credits
		SET is_listed = TRUE,
		    listing_price = $3,
		    status = CASE WHEN status = 'Archived' THEN status ELSE 'Listed' END,
		    updated_at = $2
		WHERE mint = $1
	`, mint, int64(price))
}

// MarkUnlisted clears the listing shadow flags.
func (s *RecordStore) MarkUnlisted(ctx context.Context, mint string) error {
	return s.update(ctx, "record_mark_unlisted", `
		UPDATE carbon_credits
		SET is_listed = FALSE,
		    listing_price = NULL,
		    status = CASE WHEN status = 'Listed' THEN 'Active' ELSE status END,
		    updated_at = $2
		WHERE mint = $1
	`, mint)
}

// MarkSold transfers ownership and clears the listing shadow flags.
func (s *RecordStore) MarkSold(ctx context.Context, mint, newOwner string) error {
	if newOwner == "" {
		return storage.ErrInvalidInput
	}
	return s.update(ctx, "record_mark_sold", `
		UPDATE carbon_credits
		SET owner = $3,
		    is_listed = FALSE,
		    listing_price = NULL,
		    status = CASE WHEN status = 'Listed' THEN 'Active' ELSE status END,
		    updated_at = $2
		WHERE mint = $1
	`, mint, newOwner)
}

// MarkRetired sets the retirement shadow flags and details.
func (s *RecordStore) MarkRetired(ctx context.Context, mint string, details domain.RetirementDetails) error {
	doc, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode retirement: %w", err)
	}
	return s.update(ctx, "record_mark_retired", `
		UPDATE carbon_credits
		SET is_retired = TRUE,
		    retirement = $3,
		    is_listed = FALSE,
		    listing_price = NULL,
		    status = CASE WHEN status = 'Archived' THEN status ELSE 'Retired' END,
		    updated_at = $2
		WHERE mint = $1
	`, mint, doc)
}

func (s *RecordStore) update(ctx context.Context, op, query, mint string, extra ...interface{}) (err error) {
	defer timed(op, time.Now(), &err)

	if mint == "" {
		return storage.ErrInvalidInput
	}
	args := append([]interface{}{mint, s.now().UnixMilli()}, extra...)
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, mint, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// insertArgs validates, normalizes and encodes r in recordColumns order.
func (s *RecordStore) insertArgs(r *domain.OffChainRecord) ([]interface{}, error) {
	if err := storage.ValidateRecord(r); err != nil {
		return nil, err
	}
	rec := *r
	storage.NormalizeRecord(&rec)

	now := s.now().UnixMilli()
	if rec.CreatedAt == 0 {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	location, err := json.Marshal(rec.Location)
	if err != nil {
		return nil, fmt.Errorf("encode location: %w", err)
	}
	verification, err := json.Marshal(rec.Verification)
	if err != nil {
		return nil, fmt.Errorf("encode verification: %w", err)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	var retirement []byte
	if rec.Retirement != nil {
		if retirement, err = json.Marshal(rec.Retirement); err != nil {
			return nil, fmt.Errorf("encode retirement: %w", err)
		}
	}

	return []interface{}{
		rec.Mint,
		rec.Owner,
		rec.ProjectName,
		location,
		rec.VintageYear,
		rec.CarbonAmount,
		string(rec.Standard),
		string(rec.ProjectType),
		rec.Description,
		verification,
		rec.ImageLocator,
		rec.MetadataLocator,
		metadata,
		rec.IsListed,
		rec.ListingPrice,
		rec.IsRetired,
		retirement,
		rec.Views,
		rec.Favorites,
		string(rec.Status),
		rec.Placeholder,
		rec.CreatedAt,
		rec.UpdatedAt,
	}, nil
}

// scanRecord scans a single row into OffChainRecord.
func scanRecord(row pgx.Row) (*domain.OffChainRecord, error) {
	var (
		r                                            domain.OffChainRecord
		standard, projectType, status                string
		location, verification, metadata, retirement []byte
	)

	err := row.Scan(
		&r.Mint,
		&r.Owner,
		&r.ProjectName,
		&location,
		&r.VintageYear,
		&r.CarbonAmount,
		&standard,
		&projectType,
		&r.Description,
		&verification,
		&r.ImageLocator,
		&r.MetadataLocator,
		&metadata,
		&r.IsListed,
		&r.ListingPrice,
		&r.IsRetired,
		&retirement,
		&r.Views,
		&r.Favorites,
		&status,
		&r.Placeholder,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Standard = domain.Standard(standard)
	r.ProjectType = domain.ProjectType(projectType)
	r.Status = domain.RecordStatus(status)

	if err := json.Unmarshal(location, &r.Location); err != nil {
		return nil, fmt.Errorf("decode location: %w", err)
	}
	if err := json.Unmarshal(verification, &r.Verification); err != nil {
		return nil, fmt.Errorf("decode verification: %w", err)
	}
	if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if len(retirement) > 0 {
		r.Retirement = &domain.RetirementDetails{}
		if err := json.Unmarshal(retirement, r.Retirement); err != nil {
			return nil, fmt.Errorf("decode retirement: %w", err)
		}
	}
	return &r, nil
}
