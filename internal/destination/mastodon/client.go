// Package mastodon publishes drafts to a Mastodon account.
package mastodon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	gomastodon "github.com/mattn/go-mastodon"

	"github.com/hossain-khan/social-sync/internal/engine"
	"github.com/hossain-khan/social-sync/internal/post"
	"github.com/hossain-khan/social-sync/internal/transform"
)

// Config configures a Client.
type Config struct {
	BaseURL     string
	AccessToken string
	Visibility  string // empty uses the account default

	Transport http.RoundTripper
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Client is a Mastodon destination. It also reports the rate limit state
// of the last response.
type Client struct {
	api        *gomastodon.Client
	limits     *rateLimitTransport
	visibility string
	logger     *slog.Logger
}

// New creates a client. No network call is made until Authenticate.
func New(cfg Config) *Client {
	api := gomastodon.NewClient(&gomastodon.Config{
		Server:      strings.TrimRight(cfg.BaseURL, "/"),
		AccessToken: cfg.AccessToken,
	})
	limits := newRateLimitTransport(cfg.Transport)
	api.Transport = limits
	api.Timeout = cfg.Timeout
	if api.Timeout == 0 {
		api.Timeout = 60 * time.Second
	}
	api.UserAgent = "social-sync"

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		api:        api,
		limits:     limits,
		visibility: cfg.Visibility,
		logger:     logger.With("component", "mastodon"),
	}
}

// Authenticate verifies the access token.
func (c *Client) Authenticate(ctx context.Context) error {
	acct, err := c.api.GetAccountCurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("mastodon: verify credentials: %w", err)
	}
	c.logger.Info("authenticated", "account", acct.Acct)
	return nil
}

// CharacterLimit reads the instance's status length limit. Instances that
// do not advertise one get transform.DefaultCharacterLimit.
func (c *Client) CharacterLimit(ctx context.Context) (int, error) {
	inst, err := c.api.GetInstance(ctx)
	if err != nil {
		return 0, fmt.Errorf("mastodon: get instance: %w", err)
	}
	if inst.Configuration != nil && inst.Configuration.Statuses != nil {
		if n := (*inst.Configuration.Statuses)["max_characters"]; n > 0 {
			return n, nil
		}
	}
	return transform.DefaultCharacterLimit, nil
}

// Publish posts a status.
//
// Only failures known to have happened before the request reached the
// server, and 429 responses, are marked transient. A timeout or 5xx may
// have created the status, so those are returned unmarked and not retried.
func (c *Client) Publish(ctx context.Context, d post.Draft) (*post.DestinationItem, error) {
	toot := &gomastodon.Toot{
		Status:      d.Text,
		InReplyToID: gomastodon.ID(d.InReplyToID),
		Sensitive:   d.Sensitive,
		SpoilerText: d.SpoilerText,
		Visibility:  c.visibility,
		Language:    d.Language,
	}
	for _, id := range d.MediaIDs {
		toot.MediaIDs = append(toot.MediaIDs, gomastodon.ID(id))
	}

	st, err := c.api.PostStatus(ctx, toot)
	if err != nil {
		return nil, classifyPublish(fmt.Errorf("mastodon: post status: %w", err))
	}
	c.logger.Debug("status posted", "id", st.ID, "reply_to", d.InReplyToID, "media", len(d.MediaIDs))
	return &post.DestinationItem{
		ID:          string(st.ID),
		InReplyToID: d.InReplyToID,
		Text:        d.Text,
		MediaIDs:    d.MediaIDs,
		Sensitive:   d.Sensitive,
		SpoilerText: d.SpoilerText,
		Language:    d.Language,
		URL:         st.URL,
	}, nil
}

// UploadMedia uploads one image with its alt text and returns the media id.
// The server detects the format from the content.
func (c *Client) UploadMedia(ctx context.Context, data []byte, mimeType, alt string) (string, error) {
	att, err := c.api.UploadMediaFromMedia(ctx, &gomastodon.Media{
		File:        bytes.NewReader(data),
		Description: alt,
	})
	if err != nil {
		return "", classifyUpload(fmt.Errorf("mastodon: upload media: %w", err))
	}
	c.logger.Debug("media uploaded", "id", att.ID, "bytes", len(data), "mime", mimeType)
	return string(att.ID), nil
}

// RateLimit reports the X-RateLimit headers of the most recent response.
func (c *Client) RateLimit() engine.RateLimitStatus {
	return c.limits.Status()
}

func statusCode(err error) int {
	var apiErr *gomastodon.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// beforeSend reports whether the request never reached the server.
func beforeSend(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func classifyPublish(err error) error {
	code := statusCode(err)
	switch {
	case code == http.StatusTooManyRequests:
		return engine.Transient(err)
	case code >= 400 && code < 500:
		return engine.Content(err)
	case code == 0 && beforeSend(err):
		return engine.Transient(err)
	}
	return err
}

// Uploads are safe to repeat; an orphaned attachment is harmless.
func classifyUpload(err error) error {
	code := statusCode(err)
	if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
		return engine.Content(err)
	}
	return engine.Transient(err)
}
