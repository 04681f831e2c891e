package engine

import (
	"context"
	"time"

	"github.com/hossain-khan/social-sync/internal/ledger"
	"github.com/hossain-khan/social-sync/internal/post"
)

// FetchOptions bounds a source fetch.
type FetchOptions struct {
	Limit int       // maximum candidate items to return
	Since time.Time // items created before this are filtered
}

// Filtered is a source item the source excluded before it reached the
// engine, together with the skip reason.
type Filtered struct {
	ID     string
	Reason string
}

// FetchResult is what the source returns for one fetch.
type FetchResult struct {
	Items    []post.SourceItem
	Filtered []Filtered
}

// Source reads posts from the source platform.
type Source interface {
	Fetch(ctx context.Context, opts FetchOptions) (*FetchResult, error)
	Download(ctx context.Context, img post.Image) (data []byte, mimeType string, err error)
}

// Destination publishes to the destination platform.
type Destination interface {
	Authenticate(ctx context.Context) error
	CharacterLimit(ctx context.Context) (int, error)
	Publish(ctx context.Context, draft post.Draft) (*post.DestinationItem, error)
	UploadMedia(ctx context.Context, data []byte, mimeType, alt string) (string, error)
}

// Authenticator is implemented by sources that need a login step.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// RateLimitStatus is the destination's most recently reported rate limit.
type RateLimitStatus struct {
	Known     bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// RateLimited is implemented by destinations that track rate-limit headers.
type RateLimited interface {
	RateLimit() RateLimitStatus
}

// LedgerStore loads and saves the sync ledger.
type LedgerStore interface {
	Load(ctx context.Context) (*ledger.Ledger, error)
	Save(ctx context.Context, l *ledger.Ledger) error
}

// RunRecorder keeps a history of run reports. Failures are logged and never
// affect the run outcome.
type RunRecorder interface {
	WriteRun(ctx context.Context, r *Report) error
}
