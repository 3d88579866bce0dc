package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/platformbuilds/countgate/internal/config"
	"github.com/platformbuilds/countgate/internal/models"
)

// RetryPolicy retries transport failures of a count request. Every other
// error is returned on first sight.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// NoRetry makes exactly one attempt.
var NoRetry = RetryPolicy{MaxAttempts: 1}

func RetryPolicyFromConfig(c config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     c.MaxAttempts,
		InitialInterval: time.Duration(c.InitialInterval) * time.Millisecond,
		MaxInterval:     time.Duration(c.MaxInterval) * time.Millisecond,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	if p.MaxAttempts <= 1 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)
}

// Budget is the longest Do can take when every attempt runs into timeout:
// all attempts plus the longest randomised wait between each pair.
func (p RetryPolicy) Budget(timeout time.Duration) time.Duration {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	budget := time.Duration(attempts) * timeout
	if attempts == 1 {
		return budget
	}

	wait := p.MaxInterval
	if wait <= 0 {
		wait = backoff.DefaultMaxInterval
	}
	if p.InitialInterval > wait {
		wait = p.InitialInterval
	}
	wait += time.Duration(float64(wait) * backoff.DefaultRandomizationFactor)
	return budget + time.Duration(attempts-1)*wait
}

// Do runs op until it succeeds, fails with a non-transport error, or the
// attempts are used up. onRetry is called before each new attempt.
func (p RetryPolicy) Do(ctx context.Context, op func(attempt int) error, onRetry func(err error, wait time.Duration)) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := op(attempt)
		if err == nil {
			return nil
		}
		var te *models.TransportError
		if !errors.As(err, &te) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if onRetry != nil {
			onRetry(err, wait)
		}
	}
	return backoff.RetryNotify(operation, p.backOff(ctx), notify)
}
