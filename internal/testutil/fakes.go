package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hossain-khan/social-sync/internal/engine"
	"github.com/hossain-khan/social-sync/internal/ledger"
	"github.com/hossain-khan/social-sync/internal/post"
)

// FakeSource serves a fixed batch of items.
type FakeSource struct {
	mu sync.Mutex

	Items    []post.SourceItem
	Filtered []engine.Filtered
	FetchErr error
	AuthErr  error

	// DownloadFailures makes the first N downloads of an image ref fail.
	// A negative count fails every attempt.
	DownloadFailures map[string]int

	Fetches   []engine.FetchOptions
	Downloads []string
}

// Authenticate implements engine.Authenticator.
func (s *FakeSource) Authenticate(ctx context.Context) error {
	return s.AuthErr
}

// Fetch returns the configured items, at most opts.Limit of them.
func (s *FakeSource) Fetch(ctx context.Context, opts engine.FetchOptions) (*engine.FetchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fetches = append(s.Fetches, opts)
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	items := s.Items
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return &engine.FetchResult{
		Items:    append([]post.SourceItem(nil), items...),
		Filtered: append([]engine.Filtered(nil), s.Filtered...),
	}, nil
}

// Download returns fake image bytes for img.
func (s *FakeSource) Download(ctx context.Context, img post.Image) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Downloads = append(s.Downloads, img.Ref)
	if n, ok := s.DownloadFailures[img.Ref]; ok && n != 0 {
		if n > 0 {
			s.DownloadFailures[img.Ref] = n - 1
		}
		return nil, "", fmt.Errorf("download %s: connection reset", img.Ref)
	}
	mime := img.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	return []byte("image:" + img.Ref), mime, nil
}

// FakeDestination records publishes and hands out sequential ids d1, d2, ...
type FakeDestination struct {
	mu sync.Mutex

	Limit    int
	LimitErr error
	AuthErr  error

	// PublishErrors is consumed one entry per Publish call. A nil entry lets
	// that call succeed.
	PublishErrors []error
	// FailPublish, when set, is consulted after PublishErrors.
	FailPublish func(post.Draft) error
	// UploadErrors is consumed one entry per UploadMedia call.
	UploadErrors []error

	RateLimitStatus engine.RateLimitStatus

	Attempts  []post.Draft
	Published []post.DestinationItem
	Uploads   []Upload

	nextStatus int
	nextMedia  int
}

// Upload is one successful UploadMedia call.
type Upload struct {
	ID       string
	MimeType string
	Alt      string
	Size     int
}

// Authenticate implements engine.Destination.
func (d *FakeDestination) Authenticate(ctx context.Context) error {
	return d.AuthErr
}

// CharacterLimit implements engine.Destination.
func (d *FakeDestination) CharacterLimit(ctx context.Context) (int, error) {
	if d.LimitErr != nil {
		return 0, d.LimitErr
	}
	if d.Limit == 0 {
		return 500, nil
	}
	return d.Limit, nil
}

// Publish implements engine.Destination.
func (d *FakeDestination) Publish(ctx context.Context, draft post.Draft) (*post.DestinationItem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.Attempts = append(d.Attempts, draft)
	if len(d.PublishErrors) > 0 {
		err := d.PublishErrors[0]
		d.PublishErrors = d.PublishErrors[1:]
		if err != nil {
			return nil, err
		}
	}
	if d.FailPublish != nil {
		if err := d.FailPublish(draft); err != nil {
			return nil, err
		}
	}
	d.nextStatus++
	item := post.DestinationItem{
		ID:          fmt.Sprintf("d%d", d.nextStatus),
		InReplyToID: draft.InReplyToID,
		Text:        draft.Text,
		MediaIDs:    append([]string(nil), draft.MediaIDs...),
		Sensitive:   draft.Sensitive,
		SpoilerText: draft.SpoilerText,
		Language:    draft.Language,
	}
	d.Published = append(d.Published, item)
	return &item, nil
}

// UploadMedia implements engine.Destination.
func (d *FakeDestination) UploadMedia(ctx context.Context, data []byte, mimeType, alt string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.UploadErrors) > 0 {
		err := d.UploadErrors[0]
		d.UploadErrors = d.UploadErrors[1:]
		if err != nil {
			return "", err
		}
	}
	d.nextMedia++
	id := fmt.Sprintf("m%d", d.nextMedia)
	d.Uploads = append(d.Uploads, Upload{ID: id, MimeType: mimeType, Alt: alt, Size: len(data)})
	return id, nil
}

// RateLimit implements engine.RateLimited.
func (d *FakeDestination) RateLimit() engine.RateLimitStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.RateLimitStatus
}

// ErrSaveFailed is returned by MemoryStore once FailSaveAfter saves succeeded.
var ErrSaveFailed = errors.New("disk full")

// MemoryStore keeps the ledger snapshot in memory.
type MemoryStore struct {
	mu       sync.Mutex
	snapshot *ledger.Snapshot
	LoadErr  error

	// FailSaveAfter makes every save after the first N fail. Negative
	// disables failures.
	FailSaveAfter int
	Saves         int
}

// NewMemoryStore creates a store holding l. A nil l starts empty.
func NewMemoryStore(l *ledger.Ledger) *MemoryStore {
	s := &MemoryStore{FailSaveAfter: -1}
	if l != nil {
		snap := l.Snapshot()
		s.snapshot = &snap
	}
	return s
}

// Load implements engine.LedgerStore.
func (s *MemoryStore) Load(ctx context.Context) (*ledger.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	if s.snapshot == nil {
		return ledger.New(), nil
	}
	return ledger.FromSnapshot(*s.snapshot)
}

// Save implements engine.LedgerStore.
func (s *MemoryStore) Save(ctx context.Context, l *ledger.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaveAfter >= 0 && s.Saves >= s.FailSaveAfter {
		return ErrSaveFailed
	}
	s.Saves++
	snap := l.Snapshot()
	s.snapshot = &snap
	return nil
}

// Ledger returns the last saved ledger.
func (s *MemoryStore) Ledger() *ledger.Ledger {
	l, err := s.Load(context.Background())
	if err != nil {
		panic(err)
	}
	return l
}
