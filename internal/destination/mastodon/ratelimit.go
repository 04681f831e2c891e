package mastodon

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hossain-khan/social-sync/internal/engine"
)

// rateLimitTransport records X-RateLimit-* headers from every response.
type rateLimitTransport struct {
	base http.RoundTripper

	mu     sync.Mutex
	status engine.RateLimitStatus
}

func newRateLimitTransport(base http.RoundTripper) *rateLimitTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &rateLimitTransport{base: base}
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	if st, ok := parseRateLimit(resp.Header); ok {
		t.mu.Lock()
		t.status = st
		t.mu.Unlock()
	}
	return resp, nil
}

func (t *rateLimitTransport) Status() engine.RateLimitStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func parseRateLimit(h http.Header) (engine.RateLimitStatus, bool) {
	remaining, err := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	if err != nil {
		return engine.RateLimitStatus{}, false
	}
	st := engine.RateLimitStatus{Known: true, Remaining: remaining}
	if limit, err := strconv.Atoi(h.Get("X-RateLimit-Limit")); err == nil {
		st.Limit = limit
	}
	if reset, err := time.Parse(time.RFC3339Nano, h.Get("X-RateLimit-Reset")); err == nil {
		st.Reset = reset
	}
	return st, true
}
