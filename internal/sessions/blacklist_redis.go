package sessions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist records revoked access tokens until they would have expired.
// A nil *Blacklist or one without a client accepts every token.
type Blacklist struct {
	client *redis.Client
	prefix string
}

// NewBlacklist stores entries under "blacklist:access:<token>".
func NewBlacklist(c *redis.Client) *Blacklist {
	return &Blacklist{client: c, prefix: "blacklist:access:"}
}

// Revoke blacklists token for ttl. Without a client this is a no-op.
func (b *Blacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if b == nil || b.client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return b.client.Set(ctx, b.prefix+token, "1", ttl).Err()
}

// IsRevoked returns true when the token exists in the blacklist.
func (b *Blacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	if b == nil || b.client == nil {
		return false, nil
	}
	exists, err := b.client.Exists(ctx, b.prefix+token).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
