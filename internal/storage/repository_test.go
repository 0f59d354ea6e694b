package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"listing-watch/internal/extractor"
)

// Integration tests against a real PostgreSQL instance. Set
// LISTINGWATCH_TEST_DSN to run them; without it they are skipped.

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("LISTINGWATCH_TEST_DSN")
	if dsn == "" {
		t.Skip("LISTINGWATCH_TEST_DSN not set; skipping storage integration tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	store := NewStore(pool)

	schema, err := os.ReadFile("../../migrations/001_init.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if err := store.Apply(ctx, string(schema)); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := pool.Exec(ctx, "TRUNCATE listings RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	return store
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func decp(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestUpsertBatchCreateThenUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item := extractor.ListingItem{
		SourceID: "a-1",
		Source:   "example_listings",
		Title:    "Old title",
		Address:  "1 First St",
		Price:    decp(100),
	}

	if err := store.UpsertBatch(ctx, []extractor.ListingItem{item}, day("2026-08-30")); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	item.Title = "New title"
	item.Price = decp(120)
	if err := store.UpsertBatch(ctx, []extractor.ListingItem{item}, day("2026-08-31")); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	count, err := store.CountListings(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one listing, got %d", count)
	}

	listings, err := store.ListRecentListings(ctx, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	got := listings[0]
	if got.Title != "New title" {
		t.Errorf("title not overwritten: %q", got.Title)
	}
	if !got.FirstSeenAt.Equal(day("2026-08-30")) {
		t.Errorf("first_seen_at must keep the earlier date, got %v", got.FirstSeenAt)
	}
	if !got.UpdatedAt.Equal(day("2026-08-31")) {
		t.Errorf("updated_at must carry the later date, got %v", got.UpdatedAt)
	}

	history, err := store.ListPriceHistory(ctx, "example_listings", "a-1", day("2026-01-01"), day("2027-01-01"))
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected two daily samples, got %d", len(history))
	}
	if !history[0].RecordedAt.Before(history[1].RecordedAt) {
		t.Error("history must be ordered by recorded_at ascending")
	}
}

func TestUpsertBatchSameDayPriceDeduplicated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item := extractor.ListingItem{
		SourceID: "a-1",
		Source:   "example_listings",
		Title:    "A",
		Price:    decp(100),
	}
	today := day("2026-08-31")

	if err := store.UpsertBatch(ctx, []extractor.ListingItem{item}, today); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	item.Price = decp(999)
	if err := store.UpsertBatch(ctx, []extractor.ListingItem{item}, today); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	history, err := store.ListPriceHistory(ctx, "example_listings", "a-1", today, today.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one sample for the day, got %d", len(history))
	}
	if history[0].Price == nil || !history[0].Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("first sample must win, got %v", history[0].Price)
	}
}

func TestListDayRowsExcludesUnpriced(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	today := day("2026-08-31")

	items := []extractor.ListingItem{
		{SourceID: "priced", Source: "example_listings", Title: "P", Price: decp(100)},
		{SourceID: "unpriced", Source: "example_listings", Title: "U"},
	}
	if err := store.UpsertBatch(ctx, items, today); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rows, err := store.ListDayRows(ctx, today)
	if err != nil {
		t.Fatalf("list day rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected only the priced listing, got %d rows", len(rows))
	}
	if rows[0].SourceID != "priced" {
		t.Errorf("unexpected row %+v", rows[0])
	}
	if rows[0].Price == nil || !rows[0].Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("price = %v", rows[0].Price)
	}
}
