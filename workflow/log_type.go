package workflow

import (
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"
)

// LogType 任务实例日志的输出位置
type LogType int

const (
	// LogTypeOnline 上报到调度服务端, 也是未知类型的默认值
	LogTypeOnline LogType = 1
	LogTypeLocal  LogType = 2
	LogTypeStdout LogType = 3
	// LogTypeNull 不输出任何日志
	LogTypeNull LogType = 999
)

// LogTypeOf 根据code获取日志类型, nil和未知的code都返回 LogTypeOnline
func LogTypeOf(code *int) LogType {
	if code == nil {
		return LogTypeOnline
	}
	switch LogType(*code) {
	case LogTypeOnline:
		return LogTypeOnline
	case LogTypeLocal:
		return LogTypeLocal
	case LogTypeStdout:
		return LogTypeStdout
	case LogTypeNull:
		return LogTypeNull
	default:
		return LogTypeOnline
	}
}

// Code 返回日志类型的数值
func (t LogType) Code() int {
	return int(t)
}

func GetLogTypeText(t LogType) string {
	switch t {
	case LogTypeOnline:
		return "在线"
	case LogTypeLocal:
		return "本地"
	case LogTypeStdout:
		return "标准输出"
	case LogTypeNull:
		return "不输出"
	}
	return "未知"
}

// LogConfig 实例日志配置
type LogConfig struct {
	Type  LogType    `yaml:"type" json:"type"`
	Path  string     `yaml:"path" json:"path"` // 只有 LogTypeLocal 使用
	Level slog.Level `yaml:"level" json:"level"`
}

/*
*
  - @description: 根据日志类型创建logger
    LogTypeOnline: 使用进程默认的logger, 上报由外部的log handler负责
    LogTypeLocal: json 格式追加写入本地文件
    LogTypeStdout: text 格式输出到标准输出
    LogTypeNull: 丢弃所有日志
  - @param cfg *LogConfig
  - @return *slog.Logger, io.Closer 需要调用方在实例结束时关闭, error
*/
func NewInstanceLogger(cfg *LogConfig) (*slog.Logger, io.Closer, error) {
	if cfg == nil {
		return slog.Default(), nopCloser{}, nil
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}
	switch LogTypeOf(intPtr(cfg.Type.Code())) {
	case LogTypeLocal:
		if cfg.Path == "" {
			return nil, nil, errors.WithMessage(ErrWorkerConfigInvalid, "local log type need path")
		}
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "open local log file failed, path: %s", cfg.Path)
		}
		return slog.New(slog.NewJSONHandler(f, opts)), f, nil
	case LogTypeStdout:
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nopCloser{}, nil
	case LogTypeNull:
		return slog.New(slog.DiscardHandler), nopCloser{}, nil
	default:
		return slog.Default(), nopCloser{}, nil
	}
}

func intPtr(i int) *int { return &i }

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
