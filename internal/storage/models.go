package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is a persisted, deduplicated listing row. Unique on
// (SourceID, Source). FirstSeenAt is set once at creation; UpdatedAt is
// overwritten on every re-observation.
type Listing struct {
	ID          int64
	SourceID    string
	Source      string
	Title       string
	Address     *string
	Area        *string
	URL         *string
	Currency    string
	FirstSeenAt time.Time
	UpdatedAt   time.Time
}

// PriceSnapshot is one day's recorded price for a listing. Append-only;
// at most one row per (ListingID, RecordedAt) calendar day.
type PriceSnapshot struct {
	ID         int64
	ListingID  int64
	Price      *decimal.Decimal
	RecordedAt time.Time
}

// ListingWithPrice pairs a listing with its most recent price sample,
// for display.
type ListingWithPrice struct {
	Listing
	LastPrice      *decimal.Decimal
	LastRecordedAt *time.Time
}

// DailyRow is one joined listing×price row for a given day, the unit of
// the external sync payload.
type DailyRow struct {
	SourceID string
	Source   string
	Title    string
	Address  *string
	Area     *string
	URL      *string
	Price    *decimal.Decimal
}
