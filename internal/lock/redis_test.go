package lock

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psds-microservice/rma-service/internal/logger"
)

func redisLocker(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	client, err := NewRedisClient(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, 5*time.Second, logger.Discard())
}

func TestRedis_LockUnlock(t *testing.T) {
	r := redisLocker(t)
	key := "test-" + time.Now().Format("150405.000000000")

	unlock, err := r.Lock(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	_, err = r.Lock(ctx, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()

	again, err := r.Lock(context.Background(), key)
	require.NoError(t, err)
	again()
}

func TestNewRedisClient_EmptyAddr(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "", "", 0)
	assert.Error(t, err)
}

func TestNewRedis_Defaults(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	r := NewRedis(client, 0, nil)
	assert.Equal(t, 2*time.Minute, r.ttl)
	assert.NotNil(t, r.log)
}

func TestRedis_ReleaseFailureLogged(t *testing.T) {
	base := redisLocker(t)

	var buf bytes.Buffer
	client, err := NewRedisClient(context.Background(), base.client.(*goredis.Client).Options().Addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	r := NewRedis(client, 5*time.Second, slog.New(slog.NewTextHandler(&buf, nil)))

	unlock, err := r.Lock(context.Background(), "test-release-"+time.Now().Format("150405.000000000"))
	require.NoError(t, err)
	require.NoError(t, client.Close())

	unlock()
	assert.Contains(t, buf.String(), "lock release failed")
	assert.Contains(t, buf.String(), "component=lock")
}
