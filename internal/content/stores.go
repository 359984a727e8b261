package content

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fansite/contentflow/internal/content/repository"
	"github.com/fansite/contentflow/internal/retry"
	"github.com/fansite/contentflow/internal/workflow"
)

// Backend selects and configures the content stores.
type Backend struct {
	Driver string // memory, mongo or redis
	Mongo  *mongo.Database
	Redis  *redis.Client

	// RetryAttempts > 1 wraps the mongo and redis stores in a retrying decorator.
	RetryAttempts int
	Backoff       retry.Strategy
}

// OpenStores returns one store per kind for b, leaving Hooks and Now unset.
// Mongo uses one collection per kind, redis one key prefix per kind.
func OpenStores(ctx context.Context, b Backend) (Config, error) {
	var (
		cfg Config
		err error
	)
	if cfg.Articles, err = openStore[Article](ctx, b, KindArticle); err != nil {
		return cfg, err
	}
	if cfg.Videos, err = openStore[Video](ctx, b, KindVideo); err != nil {
		return cfg, err
	}
	if cfg.Galleries, err = openStore[PhotoGroup](ctx, b, KindPhotoGroup); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func openStore[P any](ctx context.Context, b Backend, k Kind) (workflow.Store[P], error) {
	var s workflow.Store[P]
	switch b.Driver {
	case "", "memory":
		return repository.NewMemoryStore[P](), nil
	case "mongo":
		if b.Mongo == nil {
			return nil, fmt.Errorf("content: mongo store selected but no database configured")
		}
		ms, err := repository.NewMongoStore[P](ctx, b.Mongo.Collection(collectionName(k)))
		if err != nil {
			return nil, fmt.Errorf("content: open %s store: %w", k, err)
		}
		s = ms
	case "redis":
		if b.Redis == nil {
			return nil, fmt.Errorf("content: redis store selected but no client configured")
		}
		s = repository.NewRedisStore[P](b.Redis, "content:"+string(k)+":")
	default:
		return nil, fmt.Errorf("content: unknown store driver %q", b.Driver)
	}
	if b.RetryAttempts > 1 {
		s = repository.WithRetry(s, b.RetryAttempts, b.Backoff)
	}
	return s, nil
}

func collectionName(k Kind) string {
	switch k {
	case KindPhotoGroup:
		return "photo_groups"
	}
	return string(k) + "s"
}
