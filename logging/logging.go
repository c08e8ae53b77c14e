// Package logging contains the structured logger used by the voxelvis tools.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface handed to components that report progress.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Sublogger returns a logger named "<parent>.<subname>" sharing the parent's outputs.
	Sublogger(subname string) Logger

	SetLevel(level Level)
	GetLevel() Level

	// AsZap returns the underlying sugared zap logger.
	AsZap() *zap.SugaredLogger

	Sync() error
}

// NewLoggerConfig returns a new default logger config.
func NewLoggerConfig() zap.Config {
	// from https://github.com/uber-go/zap/blob/2314926ec34c23ee21f3dd4399438469668f8097/config.go#L135
	// but disable stacktraces, use same keys as prod, and color levels.
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// NewLogger returns a new logger that outputs Info+ logs to stdout.
func NewLogger(name string) Logger {
	return newWithConfig(name, INFO)
}

// NewDebugLogger returns a new logger that outputs Debug+ logs to stdout.
func NewDebugLogger(name string) Logger {
	return newWithConfig(name, DEBUG)
}

// NewBlankLogger returns a logger that discards everything. Useful as a default.
func NewBlankLogger(name string) Logger {
	level := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	return &impl{
		level:  level,
		logger: zap.New(zapcore.NewNopCore()).Sugar().Named(name),
	}
}

func newWithConfig(name string, lvl Level) Logger {
	config := NewLoggerConfig()
	config.Level = zap.NewAtomicLevelAt(lvl.AsZap())
	return &impl{
		level:  config.Level,
		logger: zap.Must(config.Build()).Sugar().Named(name),
	}
}
