package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/outline-admin/internal/errs"
	"github.com/jmehdipour/outline-admin/internal/util"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisConfig struct {
	KeyPrefix string        // e.g. "lock:customer:"
	TTL       time.Duration // lease; protects against a crashed holder
	Wait      time.Duration // how long Acquire polls before giving up
	Poll      time.Duration
}

// Redis is a lease-based Locker shared by every serve/worker process.
type Redis struct {
	rdb *redis.Client
	cfg RedisConfig
}

func NewRedis(rdb *redis.Client, cfg RedisConfig) *Redis {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "lock:customer:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 3 * time.Minute
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 5 * time.Second
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 50 * time.Millisecond
	}
	return &Redis{rdb: rdb, cfg: cfg}
}

var _ Locker = (*Redis)(nil)

func (l *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	k := l.cfg.KeyPrefix + key
	token := util.NewID()
	deadline := time.Now().Add(l.cfg.Wait)

	for {
		ok, err := l.rdb.SetNX(ctx, k, token, l.cfg.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return func() {
				// release with a fresh context: the caller's may already be cancelled
				rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				// on failure the lease runs out by itself
				_ = releaseScript.Run(rctx, l.rdb, []string{k}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %s: %w", key, errs.ErrBusy)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.cfg.Poll):
		}
	}
}
