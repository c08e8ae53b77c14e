package logging

import (
	"go.uber.org/zap"
)

type impl struct {
	level  zap.AtomicLevel
	logger *zap.SugaredLogger
}

func (imp *impl) Sublogger(subname string) Logger {
	return &impl{
		level:  imp.level,
		logger: imp.logger.Named(subname),
	}
}

func (imp *impl) SetLevel(level Level) {
	imp.level.SetLevel(level.AsZap())
}

func (imp *impl) GetLevel() Level {
	switch imp.level.Level() {
	case zap.DebugLevel:
		return DEBUG
	case zap.WarnLevel:
		return WARN
	case zap.InfoLevel:
		return INFO
	default:
		return ERROR
	}
}

func (imp *impl) AsZap() *zap.SugaredLogger {
	return imp.logger
}

func (imp *impl) Sync() error {
	return imp.logger.Sync()
}

func (imp *impl) Debug(args ...interface{}) {
	imp.logger.Debug(args...)
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.logger.Debugf(template, args...)
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.logger.Debugw(msg, keysAndValues...)
}

func (imp *impl) Info(args ...interface{}) {
	imp.logger.Info(args...)
}

func (imp *impl) Infof(template string, args ...interface{}) {
	imp.logger.Infof(template, args...)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.logger.Infow(msg, keysAndValues...)
}

func (imp *impl) Warn(args ...interface{}) {
	imp.logger.Warn(args...)
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.logger.Warnf(template, args...)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.logger.Warnw(msg, keysAndValues...)
}

func (imp *impl) Error(args ...interface{}) {
	imp.logger.Error(args...)
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.logger.Errorf(template, args...)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.logger.Errorw(msg, keysAndValues...)
}
