package workflow

import "github.com/pkg/errors"

var (
	ErrWorkerConfigInvalid     = errors.New("worker config invalid")
	ErrWorkflowParamInvalid    = errors.New("workflow param invalid")
	ErrContextSnapshotNotFound = errors.New("workflow context snapshot not found")
	// ErrContextEncodeFailed 上下文数据序列化失败，只会出现在内部，对外的AppendData不会返回错误
	ErrContextEncodeFailed = errors.New("workflow context encode failed")
)

// WorkflowContextOperation 上下文操作名称, 用于日志的operation字段
type WorkflowContextOperation = string

const (
	WorkflowContextOperationInit    WorkflowContextOperation = "init"
	WorkflowContextOperationAppend  WorkflowContextOperation = "append"
	WorkflowContextOperationRestore WorkflowContextOperation = "restore"
)

// AppendResult 追加上下文的结果, AppendData 只会把非 AppendAccepted 的结果打印成warn日志
type AppendResult int

const (
	AppendAccepted AppendResult = iota
	// 追加的条目数已经达到上限，覆盖已有key也会被拒绝
	AppendRejectedSizeExceeded
	AppendRejectedEncodeFailed
	// key 或者序列化后的 value 超过长度上限
	AppendRejectedLengthExceeded
)

func GetAppendResultText(result AppendResult) string {
	switch result {
	case AppendAccepted:
		return "accepted"
	case AppendRejectedSizeExceeded:
		return "size exceeded"
	case AppendRejectedEncodeFailed:
		return "encode failed"
	case AppendRejectedLengthExceeded:
		return "length exceeded"
	}
	return "unknown"
}

// IsSeriousError 判断是否需要打error级别日志, 配置错误需要人工介入处理
func IsSeriousError(err error) bool {
	if err == nil {
		return false
	}
	causeErr := errors.Cause(err)
	return errors.Is(causeErr, ErrWorkerConfigInvalid)
}

// 辅助函数：替代 Int64 和 Bool
func Int64(i int64) *int64 { return &i }
func Bool(b bool) *bool    { return &b }
