package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fansite/contentflow/internal/retry"
	"github.com/fansite/contentflow/pkg/logger"
)

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// ConnectMongoRetry retries ConnectMongo while the database is still coming
// up, as it usually is when the stack starts together.
func ConnectMongoRetry(ctx context.Context, uri string, timeout time.Duration, attempts int) (*mongo.Client, error) {
	var client *mongo.Client
	p := retry.Policy{
		Attempts: attempts,
		Backoff:  retry.NewJitter(500*time.Millisecond, 5*time.Second),
		// every startup failure is worth another try until ctx ends
		Retryable: func(error) bool { return ctx.Err() == nil },
		OnRetry: func(attempt int, err error) {
			logger.Warnf("mongo: connect attempt %d failed: %v", attempt, err)
		},
	}
	err := p.Do(ctx, func(ctx context.Context) error {
		var err error
		client, err = ConnectMongo(ctx, uri, timeout)
		return err
	})
	return client, err
}
