package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachable() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestConnectRedis_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := ConnectRedis(ctx, "127.0.0.1:1")

	assert.Error(t, err)
}

func TestRedisLocker_ReportsRedisFailure(t *testing.T) {
	rdb := unreachable()
	defer rdb.Close()
	l := NewRedisLocker(rdb, time.Second)

	unlock, err := l.Lock(context.Background(), "scoring:match:1")

	require.Error(t, err)
	assert.Nil(t, unlock)
	assert.NotErrorIs(t, err, ErrLockNotAcquired)
}

func TestNewRedisLocker_Defaults(t *testing.T) {
	l := NewRedisLocker(nil, 30*time.Second)

	assert.Equal(t, 30*time.Second, l.TTL)
	assert.Equal(t, 100*time.Millisecond, l.Retry)
}
