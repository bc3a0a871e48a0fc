package assets

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/i474232898/agro-portal/internal/logger"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisLocker is a Locker shared by every instance using the same Redis. The
// TTL bounds how long a crashed holder can block uploads.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	poll   time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client: client,
		prefix: "agro-portal:lock:",
		ttl:    ttl,
		poll:   100 * time.Millisecond,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	k := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := releaseScript.Run(ctx, l.client, []string{k}, token).Err(); err != nil {
					logger.Warn("assets: release lock %s: %v", k, err)
				}
			}, nil
		}

		timer := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
