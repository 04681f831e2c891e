// Package bluesky reads a user's own posts from a Bluesky PDS and converts
// them into post.SourceItem values.
package bluesky

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/gabriel-vasile/mimetype"

	"github.com/hossain-khan/social-sync/internal/engine"
	"github.com/hossain-khan/social-sync/internal/post"
)

// DefaultService is the PDS entryway used when none is configured.
const DefaultService = "https://bsky.social"

// maxDownloadBytes bounds a single image download.
const maxDownloadBytes = 16 << 20

const userAgent = "social-sync (+https://github.com/hossain-khan/social-sync)"

// Config configures a Client.
type Config struct {
	Service  string
	Handle   string
	Password string // app password

	// SkipQuotesOfOthers filters posts that quote another author.
	SkipQuotesOfOthers bool

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is a Bluesky source. It is not safe for concurrent use.
type Client struct {
	xrpc       *xrpc.Client
	http       *http.Client
	handle     string
	password   string
	skipQuotes bool
	logger     *slog.Logger
	did        string
}

// New creates a client. No network call is made until Authenticate.
func New(cfg Config) *Client {
	service := strings.TrimRight(cfg.Service, "/")
	if service == "" {
		service = DefaultService
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ua := userAgent
	return &Client{
		xrpc: &xrpc.Client{
			Client:    hc,
			Host:      service,
			UserAgent: &ua,
		},
		http:       hc,
		handle:     cfg.Handle,
		password:   cfg.Password,
		skipQuotes: cfg.SkipQuotesOfOthers,
		logger:     logger.With("component", "bluesky"),
	}
}

// DID returns the authenticated account's DID, or "" before login.
func (c *Client) DID() string {
	return c.did
}

// Authenticate creates a session with the handle and app password.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.handle == "" || c.password == "" {
		return errors.New("bluesky: handle and password are required")
	}
	out, err := atproto.ServerCreateSession(ctx, c.xrpc, &atproto.ServerCreateSession_Input{
		Identifier: c.handle,
		Password:   c.password,
	})
	if err != nil {
		return fmt.Errorf("bluesky: create session: %w", err)
	}
	c.xrpc.Auth = &xrpc.AuthInfo{
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
		Handle:     out.Handle,
		Did:        out.Did,
	}
	c.did = out.Did
	c.logger.Info("authenticated", "handle", out.Handle, "did", out.Did)
	return nil
}

// Download fetches an image by URL. 4xx responses other than 429 are
// content errors; everything else may be retried.
func (c *Client) Download(ctx context.Context, img post.Image) ([]byte, string, error) {
	if img.URL == "" {
		return nil, "", engine.Content(fmt.Errorf("bluesky: image %q has no URL", img.Ref))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, img.URL, nil)
	if err != nil {
		return nil, "", engine.Content(fmt.Errorf("bluesky: image request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("bluesky: download %s: %w", img.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("bluesky: download %s: status %d", img.URL, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, "", engine.Content(err)
		}
		return nil, "", err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("bluesky: read %s: %w", img.URL, err)
	}
	if len(data) > maxDownloadBytes {
		return nil, "", engine.Content(fmt.Errorf("bluesky: image %s exceeds %d bytes", img.URL, maxDownloadBytes))
	}

	mime, ok := imageMIME(data, resp.Header.Get("Content-Type"), img.MimeType)
	if !ok {
		return nil, "", engine.Content(fmt.Errorf("bluesky: %s is not an image (%s)", img.URL, mime))
	}
	c.logger.Debug("image downloaded", "url", img.URL, "bytes", len(data), "mime", mime)
	return data, mime, nil
}

// imageMIME prefers the sniffed type and falls back to declared types.
func imageMIME(data []byte, declared ...string) (string, bool) {
	sniffed := mimetype.Detect(data).String()
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed, true
	}
	for _, d := range declared {
		d = strings.TrimSpace(strings.SplitN(d, ";", 2)[0])
		if strings.HasPrefix(d, "image/") {
			return d, true
		}
	}
	return sniffed, false
}
