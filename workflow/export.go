package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

const defaultFlushLockDuration = 10 * time.Second

type ContextService interface {
	/**
	 * @description: 保存工作流上下文快照, 节点执行完成后调用, 用于上报给调度服务端
	 *				 同一个实例同一时间只允许一个分支保存, 其他分支返回 LockFailedError, 下一次保存会带上最新数据
	 * @param ctx context.Context
	 * @param wfContext *WorkflowContext
	 * @return error
	 */
	FlushWorkflowContext(ctx context.Context, wfContext *WorkflowContext) error
	/**
	 * @description: 从快照恢复工作流上下文, 追加数据会重新经过阈值检查
	 * @param ctx context.Context
	 * @param params *RestoreWorkflowContextParams
	 * @return *WorkflowContext, error 快照不存在返回 ErrContextSnapshotNotFound
	 */
	RestoreWorkflowContext(ctx context.Context, params *RestoreWorkflowContextParams) (*WorkflowContext, error)
	/**
	 * @description: 工作流实例结束或者放弃时删除快照
	 * @param ctx context.Context
	 * @param instanceID int64
	 * @return error
	 */
	DiscardWorkflowContext(ctx context.Context, instanceID int64) error
}

type RestoreWorkflowContextParams struct {
	InstanceID int64                   `validate:"gt=0"`
	Options    []WorkflowContextOption // 恢复出来的上下文使用的选项
}

// ContextServiceImpl 工作流上下文快照服务
type ContextServiceImpl struct {
	repo              ContextRepo
	lock              ContextLock
	lockDuration      time.Duration
	snapshotKeyPrefix string
}

func NewContextService(repo ContextRepo, lock ContextLock) ContextService {
	return &ContextServiceImpl{
		repo:              repo,
		lock:              lock,
		lockDuration:      defaultFlushLockDuration,
		snapshotKeyPrefix: "simple_worker:wf_context:",
	}
}

func (s *ContextServiceImpl) contextLockKey(instanceID int64) string {
	return fmt.Sprintf("%s%d", s.snapshotKeyPrefix, instanceID)
}

func (s *ContextServiceImpl) FlushWorkflowContext(ctx context.Context, wfContext *WorkflowContext) error {
	if wfContext == nil {
		return errors.WithMessage(ErrWorkflowParamInvalid, "FlushWorkflowContext failed, nil wfContext")
	}
	initialData, err := wfContext.initialDataJSON()
	if err != nil {
		return errors.WithMessagef(err, "encode initial data failed, instanceID: %d", wfContext.InstanceID())
	}
	appendedData, err := json.Marshal(wfContext.FetchAppendedData())
	if err != nil {
		return errors.Wrapf(ErrContextEncodeFailed, "encode appended data failed, instanceID: %d, err: %v", wfContext.InstanceID(), err)
	}
	return s.lock.NonBlockingSynchronized(ctx, s.contextLockKey(wfContext.InstanceID()), s.lockDuration, func(ctx context.Context) error {
		_, err := s.repo.SaveWorkflowContext(ctx, &WorkflowContextPo{
			InstanceID:   wfContext.InstanceID(),
			InitialData:  initialData,
			AppendedData: appendedData,
		})
		if err != nil {
			return errors.WithMessagef(err, "SaveWorkflowContext failed, instanceID: %d", wfContext.InstanceID())
		}
		return nil
	})
}

func (s *ContextServiceImpl) RestoreWorkflowContext(ctx context.Context, params *RestoreWorkflowContextParams) (*WorkflowContext, error) {
	if err := validatorUtil.Struct(params); err != nil {
		return nil, errors.Wrapf(ErrWorkflowParamInvalid, "RestoreWorkflowContext failed, params: %v, err: %v", params, err)
	}
	pos, err := s.repo.QueryWorkflowContext(ctx, &QueryWorkflowContextParams{
		InstanceID: &params.InstanceID,
		Page:       &Pager{Page: 1, Size: 1},
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "QueryWorkflowContext failed, instanceID: %d", params.InstanceID)
	}
	if len(pos) == 0 {
		return nil, errors.WithMessagef(ErrContextSnapshotNotFound, "instanceID: %d", params.InstanceID)
	}
	po := pos[0]

	wfContext := NewWorkflowContext(po.InstanceID, string(po.InitialData), params.Options...)
	appended := make(map[string]string)
	if len(po.AppendedData) > 0 {
		if err := json.Unmarshal(po.AppendedData, &appended); err != nil {
			return nil, errors.WithMessagef(err, "decode appended data failed, instanceID: %d", po.InstanceID)
		}
	}
	for key, value := range appended {
		if result := wfContext.restoreAppendedData(key, value); result != AppendAccepted {
			wfContext.logger.WarnContext(ctx, "restored workflow context data will be ignored",
				slog.Int64("instance_id", po.InstanceID),
				slog.String("operation", WorkflowContextOperationRestore),
				slog.String("key", key),
				slog.String("reason", GetAppendResultText(result)),
			)
		}
	}
	return wfContext, nil
}

func (s *ContextServiceImpl) DiscardWorkflowContext(ctx context.Context, instanceID int64) error {
	if instanceID <= 0 {
		return errors.Wrapf(ErrWorkflowParamInvalid, "DiscardWorkflowContext failed, instanceID: %d", instanceID)
	}
	return s.lock.NonBlockingSynchronized(ctx, s.contextLockKey(instanceID), s.lockDuration, func(ctx context.Context) error {
		return s.repo.DeleteWorkflowContext(ctx, instanceID)
	})
}
