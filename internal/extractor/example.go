package extractor

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// nonPrice matches every character that may not survive price cleaning.
var nonPrice = regexp.MustCompile(`[^\d.]`)

// blockSelectors locates candidate listing blocks, most specific first.
// The first selector that yields any matches wins.
var blockSelectors = []string{"[data-listing]", ".listing", "article.listing"}

// Example extracts listings from HTML shaped like:
//   - .listing (or [data-listing]) per item
//   - .title, .price, .address, .area (or data-* equivalents)
//
// Replace the selectors to match a real target site. When nothing on the
// page matches, a single demo record is produced so the downstream
// pipeline stays exercised in development environments.
type Example struct{}

// NewExample constructs the demo extractor.
func NewExample() *Example { return &Example{} }

// Source implements Extractor.
func (e *Example) Source() string { return "example_listings" }

// ExtractFromHTML implements Extractor.
func (e *Example) ExtractFromHTML(html, sourceURL string) []ListingItem {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return e.demoListing(sourceURL)
	}

	var blocks *goquery.Selection
	for _, sel := range blockSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			blocks = found
			break
		}
	}
	if blocks == nil {
		return e.demoListing(sourceURL)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	items := make([]ListingItem, 0, blocks.Length())

	blocks.Each(func(i int, block *goquery.Selection) {
		sourceID := firstAttr(block, "data-id", "id")
		if sourceID == "" {
			// Positional fallback: not a stable identity when the DOM
			// order of a re-scraped page changes.
			sourceID = fmt.Sprintf("item-%d", i)
		}

		title := text(block.Find(".title, [data-title], h2, h3").First())
		if title == "" {
			title = fmt.Sprintf("Listing %d", i)
		}

		link, _ := block.Find("a[href]").First().Attr("href")
		if link != "" && !strings.HasPrefix(link, "http") {
			link = resolveLink(sourceURL, link)
		}

		items = append(items, ListingItem{
			SourceID:  sourceID,
			Source:    e.Source(),
			Title:     title,
			Address:   text(block.Find(".address, [data-address]").First()),
			Area:      text(block.Find(".area, [data-area], .region").First()),
			Price:     ParsePrice(text(block.Find(".price, [data-price]").First())),
			Currency:  DefaultCurrency,
			URL:       link,
			ScrapedAt: today,
		})
	})

	return items
}

// demoListing keeps the pipeline exercised when a page has no matching
// structure.
func (e *Example) demoListing(sourceURL string) []ListingItem {
	price := decimal.NewFromInt(350_000)
	return []ListingItem{{
		SourceID:  "demo-1",
		Source:    e.Source(),
		Title:     "Sample listing (demo)",
		Address:   "123 Demo St",
		Area:      "Downtown",
		Price:     &price,
		Currency:  DefaultCurrency,
		URL:       sourceURL,
		ScrapedAt: time.Now().UTC().Truncate(24 * time.Hour),
	}}
}

// ParsePrice cleans a price string down to digits and the decimal point
// and parses the remainder. Empty or unparseable input yields nil.
func ParsePrice(raw string) *decimal.Decimal {
	cleaned := nonPrice.ReplaceAllString(raw, "")
	if cleaned == "" {
		return nil
	}
	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil
	}
	return &price
}

func resolveLink(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

func text(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}

func firstAttr(sel *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := sel.Attr(name); ok && v != "" {
			return v
		}
	}
	return ""
}

var _ Extractor = (*Example)(nil)
