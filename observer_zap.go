package memo

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// NewZapObserver returns an Observer that logs every memo operation.
// Successful operations are logged at debug level, failures at warn level.
//
// Example: log memo activity
//
//	logger, _ := zap.NewDevelopment()
//	m := memo.NewPure(strings.ToUpper, memo.WithObserver[string, string](memo.NewZapObserver(logger)))
//	_ = m.MustGet("ada")
func NewZapObserver(logger *zap.Logger) Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return ObserverFunc(func(_ context.Context, op Op, key string, hit bool, err error, dur time.Duration, driver Driver) {
		fields := []zap.Field{
			zap.String("op", string(op)),
			zap.String("key", key),
			zap.Bool("hit", hit),
			zap.Duration("duration", dur),
		}
		if driver != "" {
			fields = append(fields, zap.String("driver", string(driver)))
		}
		if err != nil {
			logger.Warn("memo operation failed", append(fields, zap.Error(err))...)
			return
		}
		logger.Debug("memo operation", fields...)
	})
}
