package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const testUA = "ListingWatchBot/1.0"

func newTestChecker() *Checker {
	return NewChecker(Options{Timeout: time.Second}, zerolog.Nop())
}

func robotsServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCanFetchAllowed(t *testing.T) {
	srv := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /private/\n")

	c := newTestChecker()
	if !c.CanFetch(context.Background(), srv.URL+"/list", testUA) {
		t.Fatal("expected /list to be allowed")
	}
	if c.CanFetch(context.Background(), srv.URL+"/private/x", testUA) {
		t.Fatal("expected /private/x to be disallowed")
	}
}

func TestCanFetchAgentSpecificRule(t *testing.T) {
	srv := robotsServer(t, http.StatusOK, "User-agent: ListingWatchBot\nDisallow: /\n\nUser-agent: *\nDisallow:\n")

	c := newTestChecker()
	if c.CanFetch(context.Background(), srv.URL+"/anything", testUA) {
		t.Fatal("agent-specific disallow should apply")
	}
	if !c.CanFetch(context.Background(), srv.URL+"/anything", "OtherBot/2.0") {
		t.Fatal("other agents should stay allowed")
	}
}

func TestCanFetchMissingRobotsAllows(t *testing.T) {
	// Matches urllib.robotparser semantics: a 404 means no policy, so
	// everything is permitted.
	srv := robotsServer(t, http.StatusNotFound, "")

	c := newTestChecker()
	if !c.CanFetch(context.Background(), srv.URL+"/list", testUA) {
		t.Fatal("404 robots.txt should allow fetching")
	}
}

func TestCanFetchServerErrorDenies(t *testing.T) {
	srv := robotsServer(t, http.StatusInternalServerError, "")

	c := newTestChecker()
	if c.CanFetch(context.Background(), srv.URL+"/list", testUA) {
		t.Fatal("5xx robots.txt should deny fetching")
	}
}

func TestCanFetchUnreachableOriginDenies(t *testing.T) {
	srv := robotsServer(t, http.StatusOK, "")
	srv.Close()

	c := newTestChecker()
	if c.CanFetch(context.Background(), srv.URL+"/list", testUA) {
		t.Fatal("unreachable origin should deny fetching")
	}
}

func TestCanFetchBadURLDenies(t *testing.T) {
	c := newTestChecker()
	if c.CanFetch(context.Background(), "not-a-url", testUA) {
		t.Fatal("relative url should deny fetching")
	}
	if c.CanFetch(context.Background(), "://broken", testUA) {
		t.Fatal("malformed url should deny fetching")
	}
}
