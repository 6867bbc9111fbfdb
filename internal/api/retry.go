package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often a rate-limited request is sent again.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy backs off 1s, 2s, 4s... up to 8s between attempts.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:      3,
	InitialInterval: 1 * time.Second,
	MaxInterval:     8 * time.Second,
}

func (p RetryPolicy) newBackOff(ctx context.Context, hint *time.Duration) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	var b backoff.BackOff = &retryAfterBackOff{BackOff: bo, hint: hint, max: p.MaxInterval}
	b = backoff.WithMaxRetries(b, uint64(p.MaxRetries))
	return backoff.WithContext(b, ctx)
}

// retryAfterBackOff waits at least as long as the server asked for, capped
// at max.
type retryAfterBackOff struct {
	backoff.BackOff
	hint *time.Duration
	max  time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if wait := *b.hint; wait > next {
		next = min(wait, b.max)
	}
	*b.hint = 0
	return next
}

// WithRetry executes fn, sending it again while it fails with a retryable
// error (see IsRetryable) and the policy allows. Any other error stops
// immediately and is returned as is.
func WithRetry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	if policy.MaxRetries <= 0 {
		return fn()
	}

	var hint time.Duration
	op := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		hint = GetRetryAfter(err)
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("jira request throttled, retrying", "error", err, "wait", wait)
	}
	return backoff.RetryNotify(op, policy.newBackOff(ctx, &hint), notify)
}
