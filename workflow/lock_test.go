package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testContextLock(t *testing.T, lock ContextLock) {
	ctx := context.Background()

	t.Run("locked key returns LockFailedError", func(t *testing.T) {
		err := lock.NonBlockingSynchronized(ctx, "k1", time.Minute, func(ctx context.Context) error {
			innerErr := lock.NonBlockingSynchronized(context.Background(), "k1", time.Minute, func(context.Context) error {
				return nil
			})
			assert.ErrorIs(t, innerErr, LockFailedError)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("reentrant with same ctx", func(t *testing.T) {
		called := false
		err := lock.NonBlockingSynchronized(ctx, "k2", time.Minute, func(ctx context.Context) error {
			return lock.NonBlockingSynchronized(ctx, "k2", time.Minute, func(context.Context) error {
				called = true
				return nil
			})
		})
		require.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("released after run", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, lock.NonBlockingSynchronized(ctx, "k3", time.Minute, func(context.Context) error {
				return nil
			}))
		}
	})

	t.Run("returns f error and releases", func(t *testing.T) {
		err := lock.NonBlockingSynchronized(ctx, "k4", time.Minute, func(context.Context) error {
			return ErrWorkflowParamInvalid
		})
		assert.ErrorIs(t, err, ErrWorkflowParamInvalid)
		require.NoError(t, lock.NonBlockingSynchronized(ctx, "k4", time.Minute, func(context.Context) error {
			return nil
		}))
	})
}

func TestLocalContextLock(t *testing.T) {
	testContextLock(t, NewLocalContextLock())
}

func TestLocalContextLock_Expire(t *testing.T) {
	lock := NewLocalContextLock()
	ctx := context.Background()
	err := lock.NonBlockingSynchronized(ctx, "expire", 20*time.Millisecond, func(context.Context) error {
		// 超时之后锁被自动释放, 其他调用方可以拿到
		assert.Eventually(t, func() bool {
			return lock.NonBlockingSynchronized(context.Background(), "expire", time.Minute, func(context.Context) error {
				return nil
			}) == nil
		}, time.Second, 10*time.Millisecond)
		return nil
	})
	require.NoError(t, err)
}

func TestRedisContextLock(t *testing.T) {
	_, client := setupTestRedis(t)
	testContextLock(t, NewRedisContextLock(client))
}

func TestRedisContextLock_ReleaseOnlyOwnValue(t *testing.T) {
	mr, client := setupTestRedis(t)
	lock := NewRedisContextLock(client)

	err := lock.NonBlockingSynchronized(context.Background(), "owner", time.Minute, func(context.Context) error {
		assert.True(t, mr.Exists("owner"))
		// 模拟锁过期后被别人持有
		mr.Set("owner", "other")
		return nil
	})
	require.NoError(t, err)
	v, err := mr.Get("owner")
	require.NoError(t, err)
	assert.Equal(t, "other", v)
}

func TestRedisContextLock_RedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	lock := NewRedisContextLock(client)
	mr.Close()

	err := lock.NonBlockingSynchronized(context.Background(), "down", time.Minute, func(context.Context) error {
		return nil
	})
	assert.ErrorIs(t, err, LockFailedError)
}
