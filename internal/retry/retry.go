// Package retry runs operations again after transient failures, waiting
// according to a backoff Strategy between attempts.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before retry attempt n (1-indexed).
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Exponential doubles the delay each attempt: min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

func (e *Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(attempt-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// Jitter applies full jitter to an exponential base, so concurrent callers
// retrying against the same store spread out.
type Jitter struct {
	Initial time.Duration
	Max     time.Duration
}

func NewJitter(initial, maxDelay time.Duration) *Jitter {
	return &Jitter{Initial: initial, Max: maxDelay}
}

func (j *Jitter) Delay(attempt int) time.Duration {
	base := float64(j.Initial) * math.Pow(2, float64(attempt-1))
	if j.Max > 0 && base > float64(j.Max) {
		base = float64(j.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter does not need crypto rand
}

// Policy bounds how often and how fast an operation is retried.
type Policy struct {
	Attempts int // total attempts including the first; <1 means 1
	Backoff  Strategy
	// Retryable decides whether an error is worth another attempt.
	Retryable func(error) bool
	// OnRetry is called before sleeping for attempt n (optional).
	OnRetry func(attempt int, err error)
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done. The last error from fn is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt == attempts || p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff.Delay(attempt)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
	return err
}
