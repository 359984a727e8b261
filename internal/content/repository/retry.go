package repository

import (
	"context"
	"errors"
	"io"
	"net"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fansite/contentflow/internal/retry"
	"github.com/fansite/contentflow/internal/workflow"
	"github.com/fansite/contentflow/pkg/logger"
	"github.com/fansite/contentflow/pkg/metrics"
)

// Retrying wraps a Store and retries transient failures with backoff. When
// the attempts run out the failure surfaces as workflow.ErrStorageUnavailable.
//
// A conditional write that timed out may still have been applied; its retry
// then reports a version conflict, which the caller resolves by re-reading.
type Retrying[P any] struct {
	next   workflow.Store[P]
	policy retry.Policy
}

// WithRetry decorates next. attempts counts the first try.
func WithRetry[P any](next workflow.Store[P], attempts int, backoff retry.Strategy) *Retrying[P] {
	return &Retrying[P]{
		next: next,
		policy: retry.Policy{
			Attempts:  attempts,
			Backoff:   backoff,
			Retryable: IsTransient,
		},
	}
}

func (r *Retrying[P]) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	p := r.policy
	p.OnRetry = func(attempt int, err error) {
		metrics.StoreRetries.WithLabelValues(op).Inc()
		logger.Warnf("content store: %s attempt %d failed, retrying: %v", op, attempt, err)
	}
	err := p.Do(ctx, fn)
	if err != nil && IsTransient(err) {
		return workflow.Unavailable(err)
	}
	return err
}

func (r *Retrying[P]) Create(ctx context.Context, item *workflow.Item[P]) error {
	return r.do(ctx, "create", func(ctx context.Context) error { return r.next.Create(ctx, item) })
}

func (r *Retrying[P]) Get(ctx context.Context, id string) (*workflow.Item[P], error) {
	var out *workflow.Item[P]
	err := r.do(ctx, "get", func(ctx context.Context) error {
		var err error
		out, err = r.next.Get(ctx, id)
		return err
	})
	return out, err
}

func (r *Retrying[P]) UpdateIfVersion(ctx context.Context, item *workflow.Item[P], expected int64) error {
	return r.do(ctx, "update", func(ctx context.Context) error { return r.next.UpdateIfVersion(ctx, item, expected) })
}

func (r *Retrying[P]) DeleteIfVersion(ctx context.Context, id string, expected int64) error {
	return r.do(ctx, "delete", func(ctx context.Context) error { return r.next.DeleteIfVersion(ctx, id, expected) })
}

func (r *Retrying[P]) List(ctx context.Context, f workflow.Filter) ([]*workflow.Item[P], error) {
	var out []*workflow.Item[P]
	err := r.do(ctx, "list", func(ctx context.Context) error {
		var err error
		out, err = r.next.List(ctx, f)
		return err
	})
	return out, err
}

// IsTransient reports whether err looks like a connection-level failure that
// a later attempt may not hit. Domain outcomes are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if workflow.KindOf(err) != "" || errors.Is(err, workflow.ErrAlreadyExists) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
