package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	delCommand = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`
)

func NewRedisContextLock(redisClient redis.Cmdable) ContextLock {
	return &redisContextLock{redisClient: redisClient}
}

type redisContextLock struct {
	redisClient redis.Cmdable
}

func (d *redisContextLock) NonBlockingSynchronized(ctx context.Context, key string, maxLockTimeDuration time.Duration, f func(ctx2 context.Context) error) error {
	if _, ok := ctx.Value(lockKey(key)).(string); ok {
		// 之前成功上锁了,继续执行即可
		return f(ctx)
	}
	value := getRandomLockValue()
	isLock, err := d.redisClient.SetNX(ctx, key, value, maxLockTimeDuration).Result()
	if err != nil {
		return errors.WithMessagef(LockFailedError, "[redisContextLock.NonBlockingSynchronized] key: %s, err: %v", key, err)
	}
	if !isLock {
		return errors.WithMessagef(LockFailedError, "[redisContextLock.NonBlockingSynchronized] key %s has been locked", key)
	}
	defer d.releaseKey(key, value)
	return f(context.WithValue(ctx, lockKey(key), value))
}

func (d *redisContextLock) releaseKey(key string, value string) {
	// 原来的ctx可能已经cancel, 释放锁使用新的ctx
	reply, err := d.redisClient.Eval(context.Background(), delCommand, []string{key}, value).Int64()
	if err != nil {
		slog.Error("[redisContextLock.releaseKey] release key failed", slog.String("key", key), slog.String("err", err.Error()))
		return
	}
	if reply != 1 {
		slog.Warn("[redisContextLock.releaseKey] key not released, maybe expired", slog.String("key", key), slog.Int64("reply", reply))
	}
}
