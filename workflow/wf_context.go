package workflow

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"unicode/utf8"
)

// WorkflowContext 工作流上下文
//
// 一个工作流实例在 worker 上执行时创建一个, 同一个实例并行分支上的节点共享同一个对象。
// data 是实例启动时的初始参数, 构造完成后只读; appendedData 是节点运行过程中追加的数据,
// value 为 json 序列化后的字符串, 只能新增或者覆盖。
type WorkflowContext struct {
	instanceID int64
	data       map[string]string
	nullKeys   map[string]struct{}

	mu           sync.RWMutex
	appendedData map[string]string

	limits ContextLimits
	codec  JSONCodec
	logger *slog.Logger
}

type WorkflowContextOption func(*WorkflowContext)

// WithContextLimits 指定阈值来源, 默认使用 DefaultWorkerConfig()
func WithContextLimits(limits ContextLimits) WorkflowContextOption {
	return func(c *WorkflowContext) {
		if limits != nil {
			c.limits = limits
		}
	}
}

func WithJSONCodec(codec JSONCodec) WorkflowContextOption {
	return func(c *WorkflowContext) {
		if codec != nil {
			c.codec = codec
		}
	}
}

func WithLogger(logger *slog.Logger) WorkflowContextOption {
	return func(c *WorkflowContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

/*
*
  - @description: 创建工作流上下文, 解析失败不会返回错误, 只打warn日志, 初始数据为空
  - @param instanceID int64 工作流实例ID
  - @param data string 初始参数, 顶层需要是 json object, value 会被转成字符串
  - @param opts ...WorkflowContextOption
  - @return *WorkflowContext
*/
func NewWorkflowContext(instanceID int64, data string, opts ...WorkflowContextOption) *WorkflowContext {
	c := &WorkflowContext{
		instanceID:   instanceID,
		data:         make(map[string]string),
		nullKeys:     make(map[string]struct{}),
		appendedData: make(map[string]string),
		limits:       DefaultWorkerConfig(),
		codec:        defaultJSONCodec,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	origin, err := c.codec.Decode(data)
	if err != nil {
		c.logger.WarnContext(context.Background(), "parse workflow context failed",
			slog.Int64("instance_id", instanceID),
			slog.String("operation", WorkflowContextOperationInit),
			slog.String("reason", err.Error()),
		)
		return c
	}
	for k, v := range origin {
		s, isNull := stringifyJSONValue(c.codec, v)
		c.data[k] = s
		if isNull {
			c.nullKeys[k] = struct{}{}
		}
	}
	return c
}

func (c *WorkflowContext) InstanceID() int64 {
	return c.instanceID
}

// FetchWorkflowContext 获取初始的工作流上下文, 返回拷贝, 修改不影响上下文
func (c *WorkflowContext) FetchWorkflowContext() map[string]string {
	return maps.Clone(c.data)
}

// IsNullValue 初始参数中 key 对应的值是否为 json null
func (c *WorkflowContext) IsNullValue(key string) bool {
	_, ok := c.nullKeys[key]
	return ok
}

// AppendData 往工作流上下文追加数据, key 已存在时直接覆盖。
// 超过条目数、长度限制或者序列化失败时丢弃本次数据并打warn日志, 不会影响调用方。
func (c *WorkflowContext) AppendData(key string, value any) {
	c.AppendDataWithResult(key, value)
}

// AppendDataWithResult 和 AppendData 一样, 额外返回处理结果
func (c *WorkflowContext) AppendDataWithResult(key string, value any) AppendResult {
	result, threshold, err := c.tryAppendData(key, value)
	if result == AppendAccepted {
		return result
	}
	attrs := []any{
		slog.Int64("instance_id", c.instanceID),
		slog.String("operation", WorkflowContextOperationAppend),
		slog.String("key", key),
		slog.String("reason", GetAppendResultText(result)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
	} else {
		attrs = append(attrs, slog.Int("threshold", threshold))
	}
	c.logger.WarnContext(context.Background(), "appended workflow context data will be ignored", attrs...)
	return result
}

// tryAppendData 检查顺序: 条目数 -> 序列化 -> 长度, 条目数在写锁内再检查一次, 保证不会超过上限
func (c *WorkflowContext) tryAppendData(key string, value any) (AppendResult, int, error) {
	sizeThreshold := c.limits.MaxAppendedWfContextSize()
	if c.AppendedDataSize() >= sizeThreshold {
		return AppendRejectedSizeExceeded, sizeThreshold, nil
	}
	finalValue, err := c.codec.Encode(value)
	if err != nil {
		return AppendRejectedEncodeFailed, 0, err
	}
	lengthThreshold := c.limits.MaxAppendedWfContextLength()
	if exceedsLength(key, finalValue, lengthThreshold) {
		return AppendRejectedLengthExceeded, lengthThreshold, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.appendedData) >= sizeThreshold {
		return AppendRejectedSizeExceeded, sizeThreshold, nil
	}
	c.appendedData[key] = finalValue
	return AppendAccepted, 0, nil
}

// exceedsLength 长度按字符数计算, 不是字节数
func exceedsLength(key, finalValue string, threshold int) bool {
	return utf8.RuneCountInString(key) > threshold || utf8.RuneCountInString(finalValue) > threshold
}

// FetchAppendedData 返回追加数据的拷贝
func (c *WorkflowContext) FetchAppendedData() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.appendedData)
}

func (c *WorkflowContext) GetAppendedData(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.appendedData[key]
	return v, ok
}

func (c *WorkflowContext) AppendedDataSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.appendedData)
}

// restoreAppendedData 恢复快照时使用, value 已经是序列化后的字符串, 只检查阈值
func (c *WorkflowContext) restoreAppendedData(key string, finalValue string) AppendResult {
	sizeThreshold := c.limits.MaxAppendedWfContextSize()
	lengthThreshold := c.limits.MaxAppendedWfContextLength()
	if exceedsLength(key, finalValue, lengthThreshold) {
		return AppendRejectedLengthExceeded
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.appendedData) >= sizeThreshold {
		return AppendRejectedSizeExceeded
	}
	c.appendedData[key] = finalValue
	return AppendAccepted
}

// initialDataJSON 初始参数重新编码成 json object, null 值保持为 null
func (c *WorkflowContext) initialDataJSON() ([]byte, error) {
	m := make(map[string]any, len(c.data))
	for k, v := range c.data {
		if c.IsNullValue(k) {
			m[k] = nil
			continue
		}
		m[k] = v
	}
	s, err := c.codec.Encode(m)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}
