package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"listing-watch/internal/robots"
)

// retryBaseDelay is the first backoff step for transient server errors.
// Subsequent attempts double it.
const retryBaseDelay = time.Second

// PageOptions parameterise the respectful page fetcher.
type PageOptions struct {
	UserAgent     string
	Delay         time.Duration
	Timeout       time.Duration
	RespectRobots bool
	MaxRetries    int
}

// PolicyChecker gates fetches on the target origin's robots policy.
type PolicyChecker interface {
	CanFetch(ctx context.Context, url, userAgent string) bool
}

// Page fetches HTML pages with crawl etiquette: a robots.txt gate, a
// minimum inter-request delay, bounded retries on transient server
// errors, and a fixed timeout. The delay is scoped to one Page instance;
// nothing coordinates across processes.
type Page struct {
	opts   PageOptions
	policy PolicyChecker
	logger zerolog.Logger
	client *http.Client

	mu        sync.Mutex
	lastFetch time.Time
}

// NewPage constructs a page fetcher. policy may be nil when
// RespectRobots is false.
func NewPage(opts PageOptions, policy PolicyChecker, logger zerolog.Logger) *Page {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RespectRobots && policy == nil {
		policy = robots.NewChecker(robots.Options{Timeout: timeout}, logger)
	}

	return &Page{
		opts:   opts,
		policy: policy,
		logger: logger.With().Str("component", "page_fetcher").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// FetchHTML retrieves url and returns the response body as text.
// Returns ErrPolicyDenied when robots.txt forbids the fetch (no request
// is issued) and ErrFetchFailed on network errors or a non-2xx final
// status.
func (p *Page) FetchHTML(ctx context.Context, url string) (string, error) {
	if p.opts.RespectRobots && p.policy != nil {
		if !p.policy.CanFetch(ctx, url, p.opts.UserAgent) {
			p.logger.Warn().Str("url", url).Msg("robots policy denies fetch")
			return "", fmt.Errorf("%w: %s", ErrPolicyDenied, url)
		}
	}

	if err := p.waitDelay(ctx); err != nil {
		return "", err
	}

	body, err := p.getWithRetries(ctx, url)
	if err != nil {
		p.logger.Warn().Err(err).Str("url", url).Msg("fetch failed")
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return body, nil
}

// waitDelay blocks until the configured minimum delay since the last
// fetch on this instance has elapsed. The timestamp is advanced before
// the request goes out so that failed attempts still count.
func (p *Page) waitDelay(ctx context.Context) error {
	p.mu.Lock()
	elapsed := time.Since(p.lastFetch)
	wait := p.opts.Delay - elapsed
	if p.lastFetch.IsZero() {
		wait = 0
	}
	p.lastFetch = time.Now().Add(wait)
	p.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	return sleepCtx(ctx, wait)
}

func (p *Page) getWithRetries(ctx context.Context, url string) (string, error) {
	var lastErr error
	backoff := retryBaseDelay

	for attempt := 0; attempt <= p.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoff); err != nil {
				return "", err
			}
			backoff *= 2
		}

		body, status, err := p.get(ctx, url)
		if err != nil {
			return "", err
		}
		if status >= 200 && status < 300 {
			return body, nil
		}

		lastErr = fmt.Errorf("unexpected status %d", status)
		if !isTransient(status) {
			return "", lastErr
		}
		p.logger.Debug().Int("status", status).Int("attempt", attempt+1).Str("url", url).Msg("transient server error; retrying")
	}

	return "", fmt.Errorf("retries exhausted: %w", lastErr)
}

func (p *Page) get(ctx context.Context, url string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("User-Agent", p.opts.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(body), resp.StatusCode, nil
}

// isTransient reports whether the status is worth retrying.
func isTransient(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ HTMLFetcher = (*Page)(nil)
