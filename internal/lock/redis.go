package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Locker interface {
	// Lock returns the owner token when the key was acquired, and ok=false
	// when someone else holds it.
	Lock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Unlock releases the key only while it is still held under token.
	Unlock(ctx context.Context, key, token string) error
}

// RedisLock is a SETNX lock. A key left behind by a crashed holder expires
// after its TTL.
type RedisLock struct {
	client redis.Cmdable
}

// unlockScript deletes the key only if it still carries the caller's token.
const unlockScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

func NewRedisLock(client redis.Cmdable) *RedisLock {
	return &RedisLock{client: client}
}

func (r *RedisLock) Lock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	const op = "lock.RedisLock.Lock"

	token := uuid.NewString()

	result, err := r.client.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	if !result {
		return "", false, nil
	}

	return token, true, nil
}

func (r *RedisLock) Unlock(ctx context.Context, key, token string) error {
	const op = "lock.RedisLock.Unlock"

	if err := r.client.Eval(ctx, unlockScript, []string{lockKey(key)}, token).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func lockKey(key string) string {
	return fmt.Sprintf("lock:%s", key)
}
