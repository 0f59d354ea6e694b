package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"listing-watch/internal/storage"
)

func testDay() time.Time {
	d, _ := time.Parse("2006-01-02", "2026-08-31")
	return d
}

func TestEndpoint(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://worker.example.dev", "https://worker.example.dev/api/ingest"},
		{"https://worker.example.dev/", "https://worker.example.dev/api/ingest"},
		{"https://worker.example.dev/api/ingest", "https://worker.example.dev/api/ingest"},
		{"https://worker.example.dev/api/ingest/", "https://worker.example.dev/api/ingest"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Endpoint(tc.base); got != tc.want {
			t.Errorf("Endpoint(%q) = %q, want %q", tc.base, got, tc.want)
		}
	}
}

func TestSyncPayloadAndHeaders(t *testing.T) {
	var (
		gotPath   string
		gotSecret string
		gotType   string
		gotBody   map[string]json.RawMessage
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSecret = r.Header.Get("X-Ingest-Secret")
		gotType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Secret: "s3cret", Timeout: time.Second}, zerolog.Nop())

	addr := "1 First St"
	price := 100.0
	rows := []Listing{{SourceID: "a-1", Source: "example_listings", Title: "A", Address: &addr, Price: &price}}

	sent, err := c.Sync(context.Background(), testDay(), rows)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	if gotPath != "/api/ingest" {
		t.Errorf("path = %q", gotPath)
	}
	if gotSecret != "s3cret" {
		t.Errorf("secret header = %q", gotSecret)
	}
	if gotType != "application/json" {
		t.Errorf("content type = %q", gotType)
	}

	var recordedAt string
	if err := json.Unmarshal(gotBody["recorded_at"], &recordedAt); err != nil || recordedAt != "2026-08-31" {
		t.Errorf("recorded_at = %q (%v)", recordedAt, err)
	}
	var listings []Listing
	if err := json.Unmarshal(gotBody["listings"], &listings); err != nil || len(listings) != 1 {
		t.Fatalf("listings = %v (%v)", listings, err)
	}
	if listings[0].SourceID != "a-1" || listings[0].Price == nil || *listings[0].Price != 100 {
		t.Errorf("row = %+v", listings[0])
	}
}

func TestSyncNoSecretHeaderWhenUnset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["X-Ingest-Secret"]; ok {
			t.Error("secret header must be absent when not configured")
		}
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	if _, err := c.Sync(context.Background(), testDay(), nil); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func TestSyncNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	if _, err := c.Sync(context.Background(), testDay(), nil); err == nil {
		t.Fatal("non-2xx must surface as an error")
	}
}

func TestSyncUnconfiguredBaseIsError(t *testing.T) {
	c := NewClient(Options{}, zerolog.Nop())
	if _, err := c.Sync(context.Background(), testDay(), nil); err == nil {
		t.Fatal("missing base url must be an error")
	}
}

func TestRowsFromDaily(t *testing.T) {
	price := decimal.NewFromFloat(123.45)
	area := "North"
	rows := RowsFromDaily([]storage.DailyRow{
		{SourceID: "a", Source: "s", Title: "T", Area: &area, Price: &price},
		{SourceID: "b", Source: "s", Title: "U"},
	})
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0].Price == nil || *rows[0].Price != 123.45 {
		t.Errorf("price = %v", rows[0].Price)
	}
	if rows[0].Area == nil || *rows[0].Area != "North" {
		t.Errorf("area = %v", rows[0].Area)
	}
	if rows[1].Price != nil {
		t.Errorf("nil price must stay nil, got %v", rows[1].Price)
	}
}
