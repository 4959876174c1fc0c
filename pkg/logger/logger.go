package logger

import (
	"context"
	"sync"

	"github.com/zeromicro/go-zero/core/logx"
)

// Logger 对 go-zero logx 的薄封装
type Logger struct {
	logger logx.Logger
}

// New 创建 Logger，跳过封装层的调用栈
func New() *Logger {
	return &Logger{logger: logx.WithCallerSkip(2)}
}

// WithContext 返回携带 trace 信息的 Logger
func WithContext(ctx context.Context) *Logger {
	return &Logger{logger: logx.WithContext(ctx).WithCallerSkip(1)}
}

func (l *Logger) Info(v ...any) {
	l.logger.Info(v...)
}

func (l *Logger) Infof(format string, v ...any) {
	l.logger.Infof(format, v...)
}

func (l *Logger) Infow(msg string, fields ...logx.LogField) {
	l.logger.Infow(msg, fields...)
}

func (l *Logger) Error(v ...any) {
	l.logger.Error(v...)
}

func (l *Logger) Errorf(format string, v ...any) {
	l.logger.Errorf(format, v...)
}

func (l *Logger) Errorw(msg string, fields ...logx.LogField) {
	l.logger.Errorw(msg, fields...)
}

func (l *Logger) Debugf(format string, v ...any) {
	l.logger.Debugf(format, v...)
}

func (l *Logger) Debugw(msg string, fields ...logx.LogField) {
	l.logger.Debugw(msg, fields...)
}

// WithFields 创建带字段的 Logger
func (l *Logger) WithFields(fields ...logx.LogField) *Logger {
	return &Logger{logger: l.logger.WithFields(fields...)}
}

// 未调用 Init 时使用 logx 的默认控制台输出
var (
	defaultLogger = New()
	once          sync.Once
)

// Config 日志配置
type Config struct {
	ServiceName string `yaml:"service_name"`
	Mode        string `yaml:"mode"`     // console, file, volume
	Level       string `yaml:"level"`    // debug, info, error, severe
	Encoding    string `yaml:"encoding"` // json, plain
	Path        string `yaml:"path"`     // file 模式下的目录
}

// DefaultConfig 默认配置
func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName: serviceName,
		Mode:        "console",
		Level:       "info",
		Encoding:    "json",
	}
}

// Init 使用默认配置初始化日志
func Init(serviceName string) {
	InitWithConfig(DefaultConfig(serviceName))
}

// InitWithConfig 初始化日志，只生效一次
func InitWithConfig(config Config) {
	once.Do(func() {
		if config.Mode == "" {
			config.Mode = "console"
		}
		if config.Encoding == "" {
			config.Encoding = "json"
		}
		logx.MustSetup(logx.LogConf{
			ServiceName: config.ServiceName,
			Mode:        config.Mode,
			Level:       config.Level,
			Encoding:    config.Encoding,
			Path:        config.Path,
		})
		defaultLogger = New()
	})
}

// Close 刷新并关闭日志
func Close() {
	_ = logx.Close()
}

func Info(v ...any) {
	defaultLogger.Info(v...)
}

func Infof(format string, v ...any) {
	defaultLogger.Infof(format, v...)
}

func Infow(msg string, fields ...logx.LogField) {
	defaultLogger.Infow(msg, fields...)
}

func Error(v ...any) {
	defaultLogger.Error(v...)
}

func Errorf(format string, v ...any) {
	defaultLogger.Errorf(format, v...)
}

func Errorw(msg string, fields ...logx.LogField) {
	defaultLogger.Errorw(msg, fields...)
}

func Debugf(format string, v ...any) {
	defaultLogger.Debugf(format, v...)
}

func Debugw(msg string, fields ...logx.LogField) {
	defaultLogger.Debugw(msg, fields...)
}

func WithFields(fields ...logx.LogField) *Logger {
	return defaultLogger.WithFields(fields...)
}
