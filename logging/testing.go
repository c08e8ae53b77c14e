package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// NewTestLogger returns a new logger that outputs Debug+ logs to the test's log.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also saves logs to an in memory observer.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	level := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	observerCore, observedLogs := observer.New(level)
	testCore := zaptest.NewLogger(tb, zaptest.Level(level)).Core()
	return &impl{
		level:  level,
		logger: zap.New(zapcore.NewTee(testCore, observerCore)).Sugar(),
	}, observedLogs
}
