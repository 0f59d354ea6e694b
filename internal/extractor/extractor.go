package extractor

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is assumed when a source does not state one.
const DefaultCurrency = "USD"

// ListingItem is a normalized listing record produced by an extractor.
// Identity is the (SourceID, Source) pair; items are immutable once
// produced. Optional fields are empty strings / nil pointers.
type ListingItem struct {
	SourceID  string
	Source    string
	Title     string
	Address   string
	Area      string
	Price     *decimal.Decimal
	Currency  string
	URL       string
	ScrapedAt time.Time
	Raw       json.RawMessage
}

// Extractor parses page text into zero or more listing items. Implementations
// must be pure (no I/O, no shared state) and total: unparseable input yields
// an empty slice, never an error.
type Extractor interface {
	// Source identifies the extractor; it becomes the listings' source key.
	Source() string
	// ExtractFromHTML parses html fetched from sourceURL.
	ExtractFromHTML(html, sourceURL string) []ListingItem
}
