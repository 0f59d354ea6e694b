package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"listing-watch/internal/extractor"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertListingSQL = `INSERT INTO listings (
        source_id,
        source,
        title,
        address,
        area,
        url,
        currency,
        first_seen_at,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (source_id, source) DO UPDATE
    SET
        title      = EXCLUDED.title,
        address    = EXCLUDED.address,
        area       = EXCLUDED.area,
        url        = EXCLUDED.url,
        currency   = EXCLUDED.currency,
        updated_at = EXCLUDED.updated_at
    RETURNING id;`

	priceSampleExistsSQL = `SELECT EXISTS (
        SELECT 1 FROM listing_price_history
        WHERE listing_id = $1 AND recorded_at = $2
    );`

	insertPriceSampleSQL = `INSERT INTO listing_price_history (
        listing_id,
        price,
        recorded_at
    ) VALUES (
        $1,$2,$3
    )
    ON CONFLICT (listing_id, recorded_at) DO NOTHING;`

	listDayRowsSQL = `SELECT
        l.source_id,
        l.source,
        l.title,
        l.address,
        l.area,
        l.url,
        p.price
    FROM listings l
    JOIN listing_price_history p ON p.listing_id = l.id
    WHERE p.recorded_at = $1
    ORDER BY l.source, l.source_id;`

	listRecentListingsSQL = `SELECT
        l.id,
        l.source_id,
        l.source,
        l.title,
        l.address,
        l.area,
        l.url,
        l.currency,
        l.first_seen_at,
        l.updated_at,
        p.price,
        p.recorded_at
    FROM listings l
    LEFT JOIN LATERAL (
        SELECT price, recorded_at
        FROM listing_price_history
        WHERE listing_id = l.id
        ORDER BY recorded_at DESC
        LIMIT 1
    ) p ON true
    ORDER BY l.updated_at DESC, l.id DESC
    LIMIT $1;`

	listPriceHistorySQL = `SELECT
        p.id,
        p.listing_id,
        p.price,
        p.recorded_at
    FROM listing_price_history p
    JOIN listings l ON l.id = p.listing_id
    WHERE l.source = $1
      AND l.source_id = $2
      AND p.recorded_at >= $3
      AND p.recorded_at < $4
    ORDER BY p.recorded_at;`

	countListingsSQL = `SELECT COUNT(*) FROM listings;`
)

// ListingStore defines the write path used by the ETL cycle.
type ListingStore interface {
	UpsertBatch(ctx context.Context, items []extractor.ListingItem, recordedAt time.Time) error
}

// SnapshotStore defines the read paths used by sync, show, and export.
type SnapshotStore interface {
	ListDayRows(ctx context.Context, day time.Time) ([]DailyRow, error)
	ListRecentListings(ctx context.Context, limit int) ([]ListingWithPrice, error)
	ListPriceHistory(ctx context.Context, source, sourceID string, from, to time.Time) ([]PriceSnapshot, error)
	CountListings(ctx context.Context) (int64, error)
}

// Store aggregates access to listings and their price history.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Apply executes raw migration SQL. Exec without arguments runs in
// simple protocol, so a file may hold multiple statements.
func (s *Store) Apply(ctx context.Context, sql string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("exec migration sql: %w", err)
	}
	return nil
}

// UpsertBatch persists one ETL cycle's items inside a single transaction.
// Each item either creates a listing (first_seen_at = recordedAt) or
// overwrites the mutable fields of the existing (source_id, source) row.
// A price sample is appended only when the item carries a price and no
// sample exists yet for that day; the unique constraint on
// (listing_id, recorded_at) backstops concurrent cycles.
func (s *Store) UpsertBatch(ctx context.Context, items []extractor.ListingItem, recordedAt time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range items {
		currency := item.Currency
		if currency == "" {
			currency = extractor.DefaultCurrency
		}

		var listingID int64
		if err := tx.QueryRow(ctx, upsertListingSQL,
			item.SourceID,
			item.Source,
			item.Title,
			nullIfEmpty(item.Address),
			nullIfEmpty(item.Area),
			nullIfEmpty(item.URL),
			currency,
			recordedAt,
			recordedAt,
		).Scan(&listingID); err != nil {
			return fmt.Errorf("upsert listing (%s, %s): %w", item.SourceID, item.Source, err)
		}

		if item.Price == nil {
			continue
		}

		var exists bool
		if err := tx.QueryRow(ctx, priceSampleExistsSQL, listingID, recordedAt).Scan(&exists); err != nil {
			return fmt.Errorf("check price sample: %w", err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(ctx, insertPriceSampleSQL, listingID, item.Price.String(), recordedAt); err != nil {
			return fmt.Errorf("insert price sample: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}

// ListDayRows returns each listing joined with its price sample for the
// given day. Listings without a sample that day are excluded.
func (s *Store) ListDayRows(ctx context.Context, day time.Time) ([]DailyRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listDayRowsSQL, day)
	if queryErr != nil {
		return nil, fmt.Errorf("list day rows: %w", queryErr)
	}
	defer rows.Close()

	result := make([]DailyRow, 0)
	for rows.Next() {
		var (
			row      DailyRow
			address  sql.NullString
			area     sql.NullString
			url      sql.NullString
			priceStr sql.NullString
		)
		if err := rows.Scan(
			&row.SourceID,
			&row.Source,
			&row.Title,
			&address,
			&area,
			&url,
			&priceStr,
		); err != nil {
			return nil, err
		}
		row.Address = nullableString(address)
		row.Area = nullableString(area)
		row.URL = nullableString(url)
		price, convErr := nullableDecimal(priceStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse day row price: %w", convErr)
		}
		row.Price = price
		result = append(result, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return result, nil
}

// ListRecentListings returns the most recently updated listings, each
// with its latest price sample when one exists.
func (s *Store) ListRecentListings(ctx context.Context, limit int) ([]ListingWithPrice, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentListingsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent listings: %w", queryErr)
	}
	defer rows.Close()

	listings := make([]ListingWithPrice, 0, limit)
	for rows.Next() {
		var (
			rec        ListingWithPrice
			address    sql.NullString
			area       sql.NullString
			url        sql.NullString
			priceStr   sql.NullString
			recordedAt sql.NullTime
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.SourceID,
			&rec.Source,
			&rec.Title,
			&address,
			&area,
			&url,
			&rec.Currency,
			&rec.FirstSeenAt,
			&rec.UpdatedAt,
			&priceStr,
			&recordedAt,
		); err != nil {
			return nil, err
		}
		rec.Address = nullableString(address)
		rec.Area = nullableString(area)
		rec.URL = nullableString(url)
		price, convErr := nullableDecimal(priceStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse latest price: %w", convErr)
		}
		rec.LastPrice = price
		if recordedAt.Valid {
			ts := recordedAt.Time
			rec.LastRecordedAt = &ts
		}
		listings = append(listings, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return listings, nil
}

// ListPriceHistory returns a listing's price samples in [from, to),
// ordered by recorded_at ascending.
func (s *Store) ListPriceHistory(ctx context.Context, source, sourceID string, from, to time.Time) ([]PriceSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPriceHistorySQL, source, sourceID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list price history: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]PriceSnapshot, 0)
	for rows.Next() {
		var (
			sample   PriceSnapshot
			priceStr sql.NullString
		)
		if err := rows.Scan(&sample.ID, &sample.ListingID, &priceStr, &sample.RecordedAt); err != nil {
			return nil, err
		}
		price, convErr := nullableDecimal(priceStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse history price: %w", convErr)
		}
		sample.Price = price
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// CountListings counts stored listings.
func (s *Store) CountListings(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countListingsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count listings: %w", scanErr)
	}
	return count, nil
}

func nullIfEmpty(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullableDecimal(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

var (
	_ ListingStore  = (*Store)(nil)
	_ SnapshotStore = (*Store)(nil)
)
