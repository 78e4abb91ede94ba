package faults

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy bounds the retry loop applied to Throttled and Transient
// failures before they are recorded as diagnostics.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// BaseDelay seeds the exponential backoff.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff sleep.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the standard three-attempt policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		BaseDelay: 200 * time.Millisecond,
		MaxDelay:  5 * time.Second,
	}
}

// Do runs op up to p.Attempts times. Between attempts it sleeps with
// exponential backoff and jitter. Non-retryable classes return immediately;
// a context canceled mid-backoff returns the last observed error.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(p.backoff(attempt - 1)):
			}
		}
		if err = op(ctx); err == nil {
			return nil
		}
		if !Retryable(ClassOf(err)) {
			return err
		}
	}
	return err
}

// backoff returns BaseDelay doubled per prior attempt, capped at MaxDelay,
// with up to 50% jitter added to break retry synchronization.
func (p RetryPolicy) backoff(prior int) time.Duration {
	d := p.BaseDelay << (prior - 1)
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}
