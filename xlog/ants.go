package xlog

import (
	"fmt"
)

// AntsXLogger adapts the XLogger to the ants pool logger.
type AntsXLogger struct {
	logger XLogger
}

func (l *AntsXLogger) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func NewAntsXLogger(logger XLogger) *AntsXLogger {
	l := &xLogger{}
	l.logger.Store(logger.zap().Named("Ants"))
	return &AntsXLogger{
		logger: l,
	}
}
