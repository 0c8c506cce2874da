package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeRegistry marks live join codes in Redis so codes stay unique across
// instances. SETNX claims a code atomically; the TTL is a safety net against
// leaked codes from crashed instances.
type CodeRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCodeRegistry(client *redis.Client, ttl time.Duration) *CodeRegistry {
	return &CodeRegistry{client: client, ttl: ttl}
}

func (r *CodeRegistry) Claim(ctx context.Context, code string) (bool, error) {
	return r.client.SetNX(ctx, r.key(code), "1", r.ttl).Result()
}

func (r *CodeRegistry) Release(ctx context.Context, code string) error {
	return r.client.Del(ctx, r.key(code)).Err()
}

func (r *CodeRegistry) key(code string) string {
	return "quiz:code:" + code
}
