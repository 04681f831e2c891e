package engine

import (
	"log/slog"
	"time"

	"github.com/hossain-khan/social-sync/internal/thread"
	"github.com/hossain-khan/social-sync/internal/transform"
)

// MediaStrategy decides what happens to a post when some of its images
// cannot be transferred.
type MediaStrategy string

const (
	// MediaPlaceholder publishes with the images that transferred and
	// describes the missing ones in the text.
	MediaPlaceholder MediaStrategy = "text-placeholder"

	// MediaSkipPost leaves the post unsynced so the next run retries it.
	MediaSkipPost MediaStrategy = "skip-post"

	// MediaPartial publishes with whatever transferred and says nothing.
	MediaPartial MediaStrategy = "partial"
)

// ParseMediaStrategy validates a strategy name. Empty selects the default.
func ParseMediaStrategy(s string) (MediaStrategy, bool) {
	switch MediaStrategy(s) {
	case "":
		return MediaPlaceholder, true
	case MediaPlaceholder, MediaSkipPost, MediaPartial:
		return MediaStrategy(s), true
	}
	return "", false
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithClock replaces the wall clock. Tests use testutil.FakeClock.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithRunIDGenerator replaces the UUIDv7 run id generator.
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTransformer replaces the default transformer.
func WithTransformer(t *transform.Transformer) EngineOption {
	return func(e *Engine) {
		e.transformer = t
	}
}

// WithResolver replaces the default thread resolver.
func WithResolver(r *thread.Resolver) EngineOption {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithMediaStrategy sets the partial-media strategy.
//
// Default: MediaPlaceholder.
func WithMediaStrategy(s MediaStrategy) EngineOption {
	return func(e *Engine) {
		e.mediaStrategy = s
	}
}

// WithRetryPolicy sets the policy for media transfer and publishing.
func WithRetryPolicy(p RetryPolicy) EngineOption {
	return func(e *Engine) {
		e.retry = p
	}
}

// WithItemDelay sets the pause after each successful publish.
//
// Default: 1s (DefaultItemDelay). Tests use 0.
func WithItemDelay(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.itemDelay = d
	}
}

// WithRateLimitThreshold sets the remaining-request floor that triggers a
// wait for the rate-limit reset.
func WithRateLimitThreshold(n int) EngineOption {
	return func(e *Engine) {
		e.rateLimitThreshold = n
	}
}

// WithBreakerThreshold sets how many consecutive publish failures stop the
// run from publishing.
//
// Default: 3 (DefaultBreakerThreshold).
func WithBreakerThreshold(n uint32) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.breakerThreshold = n
		}
	}
}

// WithOptOutTag sets the hashtag that excludes a post from syncing.
//
// Default: "#no-sync".
func WithOptOutTag(tag string) EngineOption {
	return func(e *Engine) {
		e.optOut = newOptOutMatcher(tag)
	}
}

// WithRunRecorder attaches a run history journal.
func WithRunRecorder(r RunRecorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}
