package workflow

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxAppendedWfContextLength = 8192
	DefaultMaxAppendedWfContextSize   = 16

	envPrefix                     = "SIMPLE_WORKER_"
	envMaxAppendedWfContextLength = envPrefix + "MAX_APPENDED_WF_CONTEXT_LENGTH"
	envMaxAppendedWfContextSize   = envPrefix + "MAX_APPENDED_WF_CONTEXT_SIZE"
	envLogType                    = envPrefix + "LOG_TYPE"
	envLogPath                    = envPrefix + "LOG_PATH"
)

// ContextLimits 追加上下文的阈值, 每次 AppendData 都会重新读取, 实现需要并发安全
type ContextLimits interface {
	MaxAppendedWfContextLength() int
	MaxAppendedWfContextSize() int
}

// WorkerConfig worker 运行时配置
type WorkerConfig struct {
	// 追加的单个 key 以及序列化后的 value 的最大长度
	MaxAppendedLength int        `yaml:"max_appended_wf_context_length" validate:"gt=0"`
	// 追加的上下文最多条目数
	MaxAppendedSize   int        `yaml:"max_appended_wf_context_size" validate:"gt=0"`
	Log               *LogConfig `yaml:"log"`
}

func (c *WorkerConfig) MaxAppendedWfContextLength() int {
	return c.MaxAppendedLength
}

func (c *WorkerConfig) MaxAppendedWfContextSize() int {
	return c.MaxAppendedSize
}

func NewDefaultWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		MaxAppendedLength: DefaultMaxAppendedWfContextLength,
		MaxAppendedSize:   DefaultMaxAppendedWfContextSize,
		Log:               &LogConfig{Type: LogTypeOnline},
	}
}

/*
*
  - @description: 加载worker配置, 优先级: 默认值 -> yaml 文件 -> 环境变量
  - @param path string yaml 文件路径, 为空则不读取文件
  - @return *WorkerConfig, error
*/
func LoadWorkerConfig(path string) (*WorkerConfig, error) {
	cfg := NewDefaultWorkerConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WithMessagef(err, "read worker config failed, path: %s", path)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, errors.Wrapf(ErrWorkerConfigInvalid, "unmarshal worker config failed, path: %s, err: %v", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, errors.WithMessage(err, "applyEnvOverrides failed")
	}
	if err := ValidateWorkerConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ValidateWorkerConfig(cfg *WorkerConfig) error {
	if cfg == nil {
		return errors.WithMessage(ErrWorkerConfigInvalid, "nil WorkerConfig")
	}
	if err := validatorUtil.Struct(cfg); err != nil {
		return errors.Wrapf(ErrWorkerConfigInvalid, "validate worker config failed, err: %v", err)
	}
	return nil
}

func applyEnvOverrides(cfg *WorkerConfig) error {
	if v := os.Getenv(envMaxAppendedWfContextLength); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(ErrWorkerConfigInvalid, "%s is not int: %s", envMaxAppendedWfContextLength, v)
		}
		cfg.MaxAppendedLength = n
	}
	if v := os.Getenv(envMaxAppendedWfContextSize); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(ErrWorkerConfigInvalid, "%s is not int: %s", envMaxAppendedWfContextSize, v)
		}
		cfg.MaxAppendedSize = n
	}
	if cfg.Log == nil {
		cfg.Log = &LogConfig{Type: LogTypeOnline}
	}
	if v := os.Getenv(envLogType); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(ErrWorkerConfigInvalid, "%s is not int: %s", envLogType, v)
		}
		cfg.Log.Type = LogTypeOf(&n)
	}
	if v := os.Getenv(envLogPath); v != "" {
		cfg.Log.Path = v
	}
	return nil
}

// DynamicWorkerConfig 可以在运行时替换的配置, 更新后对之后的 AppendData 立即生效
type DynamicWorkerConfig struct {
	current atomic.Pointer[WorkerConfig]
}

func NewDynamicWorkerConfig(cfg *WorkerConfig) *DynamicWorkerConfig {
	if cfg == nil {
		cfg = NewDefaultWorkerConfig()
	}
	d := &DynamicWorkerConfig{}
	d.current.Store(cfg)
	return d
}

// Update 校验通过才会替换, 失败时保留原来的配置
func (d *DynamicWorkerConfig) Update(cfg *WorkerConfig) error {
	if err := ValidateWorkerConfig(cfg); err != nil {
		return errors.WithMessage(err, "DynamicWorkerConfig.Update failed")
	}
	d.current.Store(cfg)
	return nil
}

func (d *DynamicWorkerConfig) Load() *WorkerConfig {
	return d.current.Load()
}

func (d *DynamicWorkerConfig) MaxAppendedWfContextLength() int {
	return d.current.Load().MaxAppendedLength
}

func (d *DynamicWorkerConfig) MaxAppendedWfContextSize() int {
	return d.current.Load().MaxAppendedSize
}

var defaultWorkerConfig = NewDynamicWorkerConfig(nil)

// DefaultWorkerConfig 进程级的配置, 没有通过 WithContextLimits 指定时使用
func DefaultWorkerConfig() *DynamicWorkerConfig {
	return defaultWorkerConfig
}
