package fetcher

import (
	"context"
	"errors"
)

var (
	// ErrPolicyDenied indicates the robots policy forbids the fetch; no
	// request was sent.
	ErrPolicyDenied = errors.New("fetcher: robots policy denies fetch")
	// ErrFetchFailed indicates a network failure, timeout, or non-2xx
	// status after retries were exhausted. Callers treat it as "no
	// content", not as a fatal condition.
	ErrFetchFailed = errors.New("fetcher: fetch failed")
)

// HTMLFetcher retrieves a page body as text.
type HTMLFetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}
