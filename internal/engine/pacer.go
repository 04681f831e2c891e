package engine

import (
	"context"
	"log/slog"
	"time"
)

// DefaultItemDelay is the pause after each successful publish.
const DefaultItemDelay = time.Second

// DefaultRateLimitThreshold is the remaining-request count at or below which
// the pacer waits for the rate-limit window to reset.
const DefaultRateLimitThreshold = 5

// maxRateLimitWait caps a single rate-limit wait.
const maxRateLimitWait = 15 * time.Minute

// pacer spaces out publishes and honours destination rate limits.
type pacer struct {
	clock     Clock
	delay     time.Duration
	threshold int
	limits    RateLimited // nil when the destination does not report limits
	logger    *slog.Logger
}

// wait blocks after a publish until the next one may start.
func (p *pacer) wait(ctx context.Context) error {
	d := p.delay
	if p.limits != nil {
		if rl := p.limits.RateLimit(); rl.Known && rl.Remaining <= p.threshold {
			until := rl.Reset.Sub(p.clock.Now())
			if until > maxRateLimitWait {
				until = maxRateLimitWait
			}
			if until > d {
				p.logger.Info("rate limit low, waiting for reset",
					"remaining", rl.Remaining,
					"reset", rl.Reset,
					"wait", until,
				)
				d = until
			}
		}
	}
	return p.clock.Sleep(ctx, d)
}
