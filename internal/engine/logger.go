package engine

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// logger is shared by every pass; modules processed concurrently log
// through the same instance.
var logger atomic.Pointer[zap.Logger]

// Logger returns the pass logger, a no-op until SetLogger is called.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	logger.CompareAndSwap(nil, zap.NewNop())
	return logger.Load()
}

// SetLogger replaces the pass logger. Nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l.Named("lambdajobs"))
}

// debug enables debugf tracing of chain discovery and retries.
var debug = false

func debugf(format string, args ...any) {
	if debug {
		Logger().Sugar().Debugf(format, args...)
	}
}
