package workflow

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

var (
	LockFailedError = errors.New("lock failed")
)

// ContextLock 同一个工作流实例的上下文快照同一时间只允许一个分支写入
type ContextLock interface {
	// NonBlockingSynchronized
	//  @Description:  1.非阻塞同步块,如果没有拿到锁，立刻返回 LockFailedError
	//                 2.可以重入锁
	//  @param ctx 原来的ctx
	//  @param key 锁的key, 一般使用 contextLockKey(instanceID)
	//  @param maxLockTimeDuration 锁最大的时间
	//  @param f 具体执行函数的闭包
	//  @return error
	NonBlockingSynchronized(ctx context.Context, key string, maxLockTimeDuration time.Duration, f func(context.Context) error) error
}

type lockKey string

func getRandomLockValue() string {
	return fmt.Sprintf("%d_%d", rand.Int(), time.Now().UnixNano())
}
