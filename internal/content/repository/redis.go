package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fansite/contentflow/internal/workflow"
)

// RedisStore keeps items as JSON strings under "<prefix><id>" and their ids in
// the set "<prefix>ids". Conditional writes use WATCH/MULTI on the item key.
type RedisStore[P any] struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store for one kind; prefix should be unique per kind
// (e.g. "content:article:").
func NewRedisStore[P any](client *redis.Client, prefix string) *RedisStore[P] {
	if prefix == "" {
		prefix = "content:"
	}
	return &RedisStore[P]{client: client, prefix: prefix}
}

func (s *RedisStore[P]) key(id string) string { return s.prefix + id }

func (s *RedisStore[P]) idsKey() string { return s.prefix + "ids" }

func (s *RedisStore[P]) Create(ctx context.Context, item *workflow.Item[P]) error {
	b, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("content/redis: encode: %w", err)
	}
	// the item and its index entry are written in one MULTI so List never
	// misses an item that exists
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, s.key(item.ID)).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return workflow.ErrAlreadyExists
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, s.key(item.ID), b, 0)
			p.SAdd(ctx, s.idsKey(), item.ID)
			return nil
		})
		return err
	}, s.key(item.ID))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr), errors.Is(err, workflow.ErrAlreadyExists):
		return workflow.ErrAlreadyExists
	}
	return fmt.Errorf("content/redis: create: %w", err)
}

func (s *RedisStore[P]) Get(ctx context.Context, id string) (*workflow.Item[P], error) {
	return s.read(ctx, s.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore[P]) read(ctx context.Context, c getter, id string) (*workflow.Item[P], error) {
	b, err := c.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, workflow.ErrNotFound
		}
		return nil, fmt.Errorf("content/redis: get: %w", err)
	}
	var it workflow.Item[P]
	if err := json.Unmarshal(b, &it); err != nil {
		return nil, fmt.Errorf("content/redis: decode %s: %w", id, err)
	}
	return &it, nil
}

func (s *RedisStore[P]) UpdateIfVersion(ctx context.Context, item *workflow.Item[P], expected int64) error {
	b, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("content/redis: encode: %w", err)
	}
	key := s.key(item.ID)
	return s.cas(ctx, item.ID, expected, func(p redis.Pipeliner) {
		p.Set(ctx, key, b, 0)
	})
}

func (s *RedisStore[P]) DeleteIfVersion(ctx context.Context, id string, expected int64) error {
	return s.cas(ctx, id, expected, func(p redis.Pipeliner) {
		p.Del(ctx, s.key(id))
		p.SRem(ctx, s.idsKey(), id)
	})
}

// cas runs write inside MULTI only if the watched item is still at expected.
// A concurrent write to the key aborts EXEC, which is reported as a conflict.
func (s *RedisStore[P]) cas(ctx context.Context, id string, expected int64, write func(redis.Pipeliner)) error {
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := s.read(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur.Version != expected {
			return workflow.ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			write(p)
			return nil
		})
		return err
	}, s.key(id))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return workflow.ErrVersionConflict
	case errors.Is(err, workflow.ErrVersionConflict), errors.Is(err, workflow.ErrNotFound):
		return err
	}
	return fmt.Errorf("content/redis: conditional write: %w", err)
}

func (s *RedisStore[P]) List(ctx context.Context, f workflow.Filter) ([]*workflow.Item[P], error) {
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("content/redis: members: %w", err)
	}
	out := make([]*workflow.Item[P], 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("content/redis: mget: %w", err)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// deleted between SMEMBERS and MGET
			continue
		}
		var it workflow.Item[P]
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			return nil, fmt.Errorf("content/redis: decode %s: %w", ids[i], err)
		}
		if f.Matches(&it.Meta) {
			out = append(out, &it)
		}
	}
	return page(out, f), nil
}
