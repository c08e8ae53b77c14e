package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits of file logs.
const (
	fileMaxSizeMB  = 64
	fileMaxBackups = 3
)

// NewLoggerWithFile returns a logger writing to stdout like NewLogger and also
// appending JSON lines to a size rotated file at path.
func NewLoggerWithFile(name string, lvl Level, path string) Logger {
	config := NewLoggerConfig()
	config.Level = zap.NewAtomicLevelAt(lvl.AsZap())
	console := zap.Must(config.Build())

	fileEncoder := config.EncoderConfig
	fileEncoder.EncodeLevel = zapcore.CapitalLevelEncoder
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    fileMaxSizeMB,
		MaxBackups: fileMaxBackups,
		Compress:   true,
	})
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoder), sink, config.Level)

	logger := console.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	}))
	return &impl{
		level:  config.Level,
		logger: logger.Sugar().Named(name),
	}
}
