package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"listing-watch/internal/extractor"
	"listing-watch/internal/storage"
)

const (
	ingestPath   = "/api/ingest"
	secretHeader = "X-Ingest-Secret"
	dayFormat    = "2006-01-02"
)

// Listing is one row of the sync payload.
type Listing struct {
	SourceID string   `json:"source_id"`
	Source   string   `json:"source"`
	Title    string   `json:"title"`
	Address  *string  `json:"address"`
	Area     *string  `json:"area"`
	URL      *string  `json:"url"`
	Price    *float64 `json:"price"`
}

type payload struct {
	RecordedAt string    `json:"recorded_at"`
	Listings   []Listing `json:"listings"`
}

// Syncer forwards a day's listings to the external ingestion endpoint.
type Syncer interface {
	Sync(ctx context.Context, day time.Time, rows []Listing) (int, error)
}

// Options parameterise the ingestion client.
type Options struct {
	BaseURL   string
	Secret    string
	Timeout   time.Duration
	UserAgent string
}

// Client POSTs daily snapshots to the remote ingestion API.
type Client struct {
	opts     Options
	logger   zerolog.Logger
	client   *http.Client
	endpoint string
}

// NewClient constructs an ingestion client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		opts:     opts,
		logger:   logger.With().Str("component", "ingest_client").Logger(),
		client:   &http.Client{Timeout: timeout},
		endpoint: Endpoint(opts.BaseURL),
	}
}

// Endpoint derives the full ingest URL from a configured base. A base
// that already ends in "ingest" is used as-is.
func Endpoint(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" || strings.HasSuffix(base, "ingest") {
		return base
	}
	return base + ingestPath
}

// Sync POSTs the rows recorded on day. Returns the number of rows sent
// on a 2xx response; any network error or non-2xx status is an error.
func (c *Client) Sync(ctx context.Context, day time.Time, rows []Listing) (int, error) {
	if c.endpoint == "" {
		return 0, fmt.Errorf("ingest base url not configured")
	}

	body, err := json.Marshal(payload{
		RecordedAt: day.UTC().Format(dayFormat),
		Listings:   rows,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal ingest payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create ingest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	if c.opts.Secret != "" {
		req.Header.Set(secretHeader, c.opts.Secret)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send ingest request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("ingest api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	c.logger.Info().Str("day", day.UTC().Format(dayFormat)).Int("rows", len(rows)).Msg("snapshot synced")
	return len(rows), nil
}

// RowsFromItems converts freshly extracted items into payload rows,
// for the database-less CI path.
func RowsFromItems(items []extractor.ListingItem) []Listing {
	out := make([]Listing, 0, len(items))
	for _, item := range items {
		row := Listing{
			SourceID: item.SourceID,
			Source:   item.Source,
			Title:    item.Title,
			Address:  optString(item.Address),
			Area:     optString(item.Area),
			URL:      optString(item.URL),
		}
		if item.Price != nil {
			price := item.Price.InexactFloat64()
			row.Price = &price
		}
		out = append(out, row)
	}
	return out
}

func optString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// RowsFromDaily converts storage day rows into payload rows.
func RowsFromDaily(rows []storage.DailyRow) []Listing {
	out := make([]Listing, 0, len(rows))
	for _, r := range rows {
		row := Listing{
			SourceID: r.SourceID,
			Source:   r.Source,
			Title:    r.Title,
			Address:  r.Address,
			Area:     r.Area,
			URL:      r.URL,
		}
		if r.Price != nil {
			price := r.Price.InexactFloat64()
			row.Price = &price
		}
		out = append(out, row)
	}
	return out
}

var _ Syncer = (*Client)(nil)
