package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/psds-microservice/rma-service/internal/logger"
)

const (
	keyPrefix    = "rma-service:lock:"
	retryBackoff = 100 * time.Millisecond
)

// снимаем ключ, только если он всё ещё наш
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// NewRedisClient подключается к Redis и проверяет соединение.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is empty")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// Redis: блокировка между экземплярами через SET NX с TTL. TTL ограничивает
// время удержания, если экземпляр упал, не освободив ключ.
type Redis struct {
	client goredis.UniversalClient
	ttl    time.Duration
	log    *slog.Logger
}

func NewRedis(client goredis.UniversalClient, ttl time.Duration, log *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		log:    logger.Or(log).With("component", "lock"),
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := keyPrefix + key
	token := uuid.NewString()

	for {
		acquired, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if acquired {
			return sync.OnceFunc(func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := releaseScript.Run(ctx, r.client, []string{k}, token).Err(); err != nil {
					r.log.Warn("lock release failed", "key", key, "error", err)
				}
			}), nil
		}

		t := time.NewTimer(retryBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}
