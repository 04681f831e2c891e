package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds a retried operation.
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	AttemptTimeout  time.Duration // per-attempt deadline, 0 for none
}

// DefaultRetryPolicy is used for media transfer and publishing.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2,
		AttemptTimeout:  30 * time.Second,
	}
}

// Retry runs op until it succeeds, returns an error retryable rejects, or the
// policy is exhausted. The last error is returned.
func Retry[T any](ctx context.Context, p RetryPolicy, retryable func(error) bool, op func(context.Context) (T, error), notify func(error, time.Duration)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}

	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(attempts),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(notify))
	}

	return backoff.Retry(ctx, func() (T, error) {
		attemptCtx := ctx
		if p.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
			defer cancel()
		}
		v, err := op(attemptCtx)
		if err != nil && (ctx.Err() != nil || !retryable(err)) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, opts...)
}
