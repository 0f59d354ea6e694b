package robots

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/temoto/robotstxt"
)

// maxRobotsBody caps how much of a robots.txt response is read.
const maxRobotsBody = 512 * 1024

// Options parameterise the policy checker.
type Options struct {
	Timeout time.Duration
}

// Checker answers whether a user agent may fetch a URL according to the
// target origin's robots.txt. Any retrieval or parse failure denies.
type Checker struct {
	client *http.Client
	logger zerolog.Logger
}

// NewChecker constructs a robots policy checker.
func NewChecker(opts Options, logger zerolog.Logger) *Checker {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Checker{
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "robots_checker").Logger(),
	}
}

// CanFetch reports whether userAgent may fetch rawURL. The origin's
// robots.txt is fetched once, without retries. A missing robots.txt
// (4xx) permits everything; server errors, network failures, and
// unparseable URLs deny by default.
func (c *Checker) CanFetch(ctx context.Context, rawURL, userAgent string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		c.logger.Debug().Str("url", rawURL).Msg("unparseable url; denying fetch")
		return false
	}

	robotsURL := parsed.Scheme + "://" + parsed.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("robots_url", robotsURL).Msg("robots.txt unreachable; denying fetch")
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
	if err != nil {
		return false
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		c.logger.Debug().Err(err).Int("status", resp.StatusCode).Str("robots_url", robotsURL).Msg("robots.txt not usable; denying fetch")
		return false
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}

	return data.FindGroup(userAgent).Test(path)
}
