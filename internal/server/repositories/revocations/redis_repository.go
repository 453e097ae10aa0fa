package revocations

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces revocation keys.
const DefaultKeyPrefix = "auth:revoked:"

type RedisRepository struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRepository(client redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(accountID string) string {
	return r.prefix + accountID
}

// RevokeAccount stores at as Unix milliseconds, matching the resolution of
// the token "iat" claim.
func (r *RedisRepository) RevokeAccount(ctx context.Context, accountID string, at time.Time, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(accountID), at.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) RevokedAt(ctx context.Context, accountID string) (time.Time, bool, error) {
	val, err := r.client.Get(ctx, r.key(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("redis error: %w", err)
	}

	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt revocation record for %s: %w", accountID, err)
	}

	return time.UnixMilli(ms), true, nil
}
