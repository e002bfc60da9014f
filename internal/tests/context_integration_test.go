package tests

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/blingmoon/simple-worker/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupWorkers 两个 worker 共享一个 sqlite 和一个 redis
func setupWorkers(t *testing.T) (workflow.ContextService, workflow.ContextService, *miniredis.Miniredis) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "integration.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&workflow.WorkflowContextPo{}))

	mr := miniredis.RunT(t)
	newService := func() workflow.ContextService {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return workflow.NewContextService(workflow.NewContextRepo(db), workflow.NewRedisContextLock(client))
	}
	return newService(), newService(), mr
}

// TestContextHandoverBetweenWorkers 第一个 worker 执行前半部分节点, 第二个 worker 恢复上下文继续执行
func TestContextHandoverBetweenWorkers(t *testing.T) {
	worker1, worker2, _ := setupWorkers(t)
	ctx := context.Background()
	limits := workflow.NewDynamicWorkerConfig(&workflow.WorkerConfig{MaxAppendedLength: 128, MaxAppendedSize: 20})

	t.Run("worker1 执行并行分支", func(t *testing.T) {
		wfContext := workflow.NewWorkflowContext(9001, `{"business_id":"B-1","retry":0}`, workflow.WithContextLimits(limits))
		var g errgroup.Group
		for i := 0; i < 10; i++ {
			g.Go(func() error {
				wfContext.AppendData(fmt.Sprintf("branch_%d", i), i*i)
				return nil
			})
		}
		require.NoError(t, g.Wait())
		require.NoError(t, worker1.FlushWorkflowContext(ctx, wfContext))
	})

	t.Run("worker2 恢复后继续追加", func(t *testing.T) {
		wfContext, err := worker2.RestoreWorkflowContext(ctx, &workflow.RestoreWorkflowContextParams{
			InstanceID: 9001,
			Options:    []workflow.WorkflowContextOption{workflow.WithContextLimits(limits)},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"business_id": "B-1", "retry": "0"}, wfContext.FetchWorkflowContext())
		assert.Equal(t, 10, wfContext.AppendedDataSize())
		for i := 0; i < 10; i++ {
			v, ok := wfContext.GetAppendedData(fmt.Sprintf("branch_%d", i))
			require.True(t, ok)
			assert.Equal(t, fmt.Sprintf("%d", i*i), v)
		}

		// 热更新阈值, 对已存在的上下文立即生效
		require.NoError(t, limits.Update(&workflow.WorkerConfig{MaxAppendedLength: 128, MaxAppendedSize: 11}))
		assert.Equal(t, workflow.AppendAccepted, wfContext.AppendDataWithResult("final", "ok"))
		assert.Equal(t, workflow.AppendRejectedSizeExceeded, wfContext.AppendDataWithResult("extra", "ignored"))
		require.NoError(t, worker2.FlushWorkflowContext(ctx, wfContext))
	})

	t.Run("worker1 看到 worker2 的结果", func(t *testing.T) {
		wfContext, err := worker1.RestoreWorkflowContext(ctx, &workflow.RestoreWorkflowContextParams{InstanceID: 9001})
		require.NoError(t, err)
		v, ok := wfContext.GetAppendedData("final")
		require.True(t, ok)
		assert.Equal(t, `"ok"`, v)
		_, ok = wfContext.GetAppendedData("extra")
		assert.False(t, ok)
	})
}

// TestFlushLockedByOtherWorker 其他 worker 持有锁时, 保存立即失败而不是阻塞
func TestFlushLockedByOtherWorker(t *testing.T) {
	worker1, _, mr := setupWorkers(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("simple_worker:wf_context:9002", "other-worker"))
	mr.SetTTL("simple_worker:wf_context:9002", time.Minute)

	err := worker1.FlushWorkflowContext(ctx, workflow.NewWorkflowContext(9002, `{}`))
	assert.ErrorIs(t, err, workflow.LockFailedError)

	mr.FastForward(2 * time.Minute)
	assert.NoError(t, worker1.FlushWorkflowContext(ctx, workflow.NewWorkflowContext(9002, `{}`)))
}
