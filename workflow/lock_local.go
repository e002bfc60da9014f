package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
)

func NewLocalContextLock() ContextLock {
	return &localContextLock{
		locks: &sync.Map{},
	}
}

type localContextLock struct {
	guard sync.Mutex // 保护 localLockInfo 的 value 和 timer, 超时释放和正常释放可能并发
	locks *sync.Map  // key -> *localLockInfo
}

type localLockInfo struct {
	mu    sync.Mutex
	value string      // 持有者标识
	timer *time.Timer // 超时自动释放
}

func (l *localContextLock) NonBlockingSynchronized(ctx context.Context, key string, maxLockTimeDuration time.Duration, f func(context.Context) error) error {
	if _, ok := ctx.Value(lockKey(key)).(string); ok {
		// 已经持有锁, 重入
		return f(ctx)
	}

	lockInfo, _ := l.locks.LoadOrStore(key, &localLockInfo{})
	info := lockInfo.(*localLockInfo)
	if !info.mu.TryLock() {
		return errors.WithMessagef(LockFailedError, "[localContextLock.NonBlockingSynchronized] key %s has been locked", key)
	}
	if current, ok := l.locks.Load(key); !ok || current != lockInfo {
		// 拿到的是刚被释放删除的锁
		info.mu.Unlock()
		return errors.WithMessagef(LockFailedError, "[localContextLock.NonBlockingSynchronized] key %s lock released concurrently", key)
	}

	value := getRandomLockValue()
	l.guard.Lock()
	info.value = value
	info.timer = time.AfterFunc(maxLockTimeDuration, func() {
		l.releaseKey(key, value)
	})
	l.guard.Unlock()
	defer l.releaseKey(key, value)

	return f(context.WithValue(ctx, lockKey(key), value))
}

func (l *localContextLock) releaseKey(key string, value string) {
	l.guard.Lock()
	defer l.guard.Unlock()
	lockInfo, ok := l.locks.Load(key)
	if !ok {
		return
	}
	info := lockInfo.(*localLockInfo)
	if info.value != value {
		// 超时已经释放过, 可能被别人重新持有
		slog.Warn("[localContextLock.releaseKey] value mismatch", slog.String("key", key), slog.String("expected", info.value), slog.String("got", value))
		return
	}
	if info.timer != nil {
		info.timer.Stop()
	}
	info.value = ""
	l.locks.Delete(key)
	info.mu.Unlock()
}
