package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func TestExponentialDelay(t *testing.T) {
	e := NewExponential(10*time.Millisecond, 50*time.Millisecond)
	require.Equal(t, 10*time.Millisecond, e.Delay(1))
	require.Equal(t, 20*time.Millisecond, e.Delay(2))
	require.Equal(t, 40*time.Millisecond, e.Delay(3))
	require.Equal(t, 50*time.Millisecond, e.Delay(4))
}

func TestJitterStaysWithinBound(t *testing.T) {
	j := NewJitter(10*time.Millisecond, 30*time.Millisecond)
	for attempt := 1; attempt <= 6; attempt++ {
		d := j.Delay(attempt)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 30*time.Millisecond)
	}
}

func TestDoRetriesTransientFailures(t *testing.T) {
	calls := 0
	retried := 0
	p := Policy{
		Attempts:  3,
		Backoff:   NewExponential(time.Millisecond, time.Millisecond),
		Retryable: func(err error) bool { return errors.Is(err, errFlaky) },
		OnRetry:   func(int, error) { retried++ },
	}
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, 2, retried)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	p := Policy{Attempts: 5, Retryable: func(err error) bool { return errors.Is(err, errFlaky) }}
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, calls)
}

func TestDoGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	p := Policy{Attempts: 2, Retryable: func(error) bool { return true }}
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})
	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, 2, calls)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	p := Policy{Attempts: 5, Backoff: NewExponential(time.Hour, time.Hour), Retryable: func(error) bool { return true }}
	err := p.Do(ctx, func(context.Context) error {
		calls++
		return errFlaky
	})
	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, 1, calls)
}
