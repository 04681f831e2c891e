package engine

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// DefaultBreakerThreshold is the number of consecutive publish failures that
// opens the breaker.
const DefaultBreakerThreshold = 3

// ReasonDestinationUnavailable labels items left unsynced by an open breaker.
const ReasonDestinationUnavailable = "destination-unavailable"

// newPublishBreaker trips after threshold consecutive failures. Content
// rejections do not count: the destination answered, it just refused the
// payload. The breaker stays open for the rest of the run.
func newPublishBreaker(threshold uint32, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "destination-publish",
		MaxRequests: 1,
		Timeout:     24 * time.Hour,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsContentError(err)
		},
	})
}
