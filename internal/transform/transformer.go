package transform

import (
	"io"
	"log/slog"
	"strings"

	"github.com/hossain-khan/social-sync/internal/post"
	"golang.org/x/text/unicode/norm"
)

// DefaultCharacterLimit is used when the caller passes a non-positive limit.
const DefaultCharacterLimit = 500

// DefaultMaxQuoteDepth is how many levels of nested quotes are rendered.
const DefaultMaxQuoteDepth = 2

// DefaultAttribution is appended to top-level posts.
const DefaultAttribution = "\n\n(via Bluesky 🦋)"

// Content is the transformed payload for one source post.
type Content struct {
	Text        string
	Images      []post.Image // images to upload and attach, in order
	Sensitive   bool
	SpoilerText string
	Language    string
}

// Transformer converts SourceItems to Content. The zero value is not usable;
// construct with New.
type Transformer struct {
	mediaUpload   bool
	attribution   bool
	suffix        string
	maxQuoteDepth int
	logger        *slog.Logger
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithMediaUpload controls whether images are attached as media (true) or
// described in the text (false). Default: true.
func WithMediaUpload(enabled bool) Option {
	return func(t *Transformer) {
		t.mediaUpload = enabled
	}
}

// WithAttribution enables or disables the attribution suffix. Default: true.
func WithAttribution(enabled bool) Option {
	return func(t *Transformer) {
		t.attribution = enabled
	}
}

// WithAttributionText replaces the attribution suffix.
func WithAttributionText(suffix string) Option {
	return func(t *Transformer) {
		t.suffix = suffix
	}
}

// WithMaxQuoteDepth sets how many nested quote levels are rendered.
func WithMaxQuoteDepth(depth int) Option {
	return func(t *Transformer) {
		if depth > 0 {
			t.maxQuoteDepth = depth
		}
	}
}

// WithLogger sets the logger used for dropped spans and unknown embeds.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transformer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a Transformer.
func New(opts ...Option) *Transformer {
	t := &Transformer{
		mediaUpload:   true,
		attribution:   true,
		suffix:        DefaultAttribution,
		maxQuoteDepth: DefaultMaxQuoteDepth,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MediaUpload reports whether images are attached rather than described.
func (t *Transformer) MediaUpload() bool {
	return t.mediaUpload
}

// Transform converts item into Content that fits within limit characters.
func (t *Transformer) Transform(item post.SourceItem, limit int) Content {
	if !t.mediaUpload {
		return t.transform(item, limit, nil, post.ImagesOf(item.Embed))
	}
	return t.transform(item, limit, post.ImagesOf(item.Embed), nil)
}

// TransformDegraded is Transform for a post whose images could not all be
// transferred. Images in missing are described in the text instead of being
// returned for upload.
func (t *Transformer) TransformDegraded(item post.SourceItem, limit int, missing []post.Image) Content {
	var attach []post.Image
	if t.mediaUpload {
		for _, img := range post.ImagesOf(item.Embed) {
			if !containsImage(missing, img) {
				attach = append(attach, img)
			}
		}
	} else {
		missing = post.ImagesOf(item.Embed)
	}
	return t.transform(item, limit, attach, missing)
}

func (t *Transformer) transform(item post.SourceItem, limit int, attach, describe []post.Image) Content {
	if limit <= 0 {
		limit = DefaultCharacterLimit
	}

	text := expandSpans(item.Text, item.Annotations, t.logger.With("source_id", item.ID))

	visited := map[string]bool{}
	if item.ID != "" {
		visited[item.ID] = true
	}
	var b strings.Builder
	b.WriteString(text)
	t.renderEmbed(&b, text, item.Embed, 1, visited, describe)

	spoiler := ContentWarning(item.SelfLabels)

	out := Truncate(norm.NFC.String(b.String()), limit)
	if t.attribution && !item.IsReply() {
		out = appendAttribution(out, t.suffix, limit)
	}

	return Content{
		Text:        out,
		Images:      attach,
		Sensitive:   spoiler != "",
		SpoilerText: spoiler,
		Language:    Language(item.Languages),
	}
}

func appendAttribution(text, suffix string, limit int) string {
	if suffix == "" {
		return text
	}
	if strings.Contains(text, strings.TrimSpace(suffix)) || strings.Contains(text, "(via ") {
		return text
	}
	if Count(text+suffix) > limit {
		return text
	}
	return text + suffix
}

func containsImage(set []post.Image, img post.Image) bool {
	for _, s := range set {
		if s == img {
			return true
		}
	}
	return false
}
