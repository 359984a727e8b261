package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps each session as JSON under <prefix><sha256(refresh)>
// and lets Redis expire it at ExpiresAt. Key names never carry a usable token.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository defaults prefix to "session:".
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(refresh string) string {
	sum := sha256.Sum256([]byte(refresh))
	return r.prefix + hex.EncodeToString(sum[:])
}

func (r *RedisRepository) Create(ctx context.Context, s *Session) error {
	stamp(s)
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("sessions: encode: %w", err)
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	// SET NX: a colliding refresh token must never overwrite another session
	ok, err := r.client.SetNX(ctx, r.key(s.RefreshToken), b, ttl).Result()
	if err != nil {
		return fmt.Errorf("sessions: redis set: %w", err)
	}
	if !ok {
		return errors.New("sessions: refresh token already in use")
	}
	return nil
}

func (r *RedisRepository) GetByRefresh(ctx context.Context, refresh string) (*Session, error) {
	b, err := r.client.Get(ctx, r.key(refresh)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sessions: redis get: %w", err)
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("sessions: decode: %w", err)
	}
	if time.Now().UTC().After(s.ExpiresAt) {
		_ = r.client.Del(ctx, r.key(refresh)).Err()
		return nil, nil
	}
	return &s, nil
}

func (r *RedisRepository) DeleteByRefresh(ctx context.Context, refresh string) error {
	return r.client.Del(ctx, r.key(refresh)).Err()
}
