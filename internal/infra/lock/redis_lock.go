package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "trash_reminder:run:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock keeps replicas from running the same nightly batch twice.
type RedisRunLock struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisRunLock connects and pings the Redis server.
func NewRedisRunLock(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisRunLock, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return &RedisRunLock{rdb: rdb, ttl: ttl}, nil
}

// TryAcquire takes the lock for key. ok is false when another holder has it.
// The returned release function is safe to call after the TTL expired.
func (l *RedisRunLock) TryAcquire(ctx context.Context, key string) (release func(context.Context) error, ok bool, err error) {
	token := uuid.NewString()
	ok, err = l.rdb.SetNX(ctx, keyPrefix+key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire run lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.rdb, []string{keyPrefix + key}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("failed to release run lock %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}

func (l *RedisRunLock) Close() error {
	return l.rdb.Close()
}
