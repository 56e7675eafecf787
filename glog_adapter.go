package task

import (
	"context"

	"github.com/goliatone/go-logger/glog"
)

// GlogAdapter wraps a glog.Logger so it satisfies the engine Logger
// contract. Hosts already using go-logger plug their base logger through
// here and keep structured output for finalized results.
type GlogAdapter struct {
	logger glog.Logger
}

// NewGlogAdapter returns a Logger backed by the given glog logger. A nil
// logger falls back to the fmt logger.
func NewGlogAdapter(logger glog.Logger) Logger {
	if logger == nil {
		return NewFmtLogger(nil)
	}
	return GlogAdapter{logger: logger}
}

func (l GlogAdapter) Trace(msg string, args ...any) { l.logger.Trace(msg, args...) }
func (l GlogAdapter) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l GlogAdapter) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l GlogAdapter) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l GlogAdapter) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l GlogAdapter) WithContext(ctx context.Context) Logger {
	if l.logger == nil {
		return NewFmtLogger(nil).WithContext(ctx)
	}
	return GlogAdapter{logger: l.logger.WithContext(ctx)}
}

// WithFields implements FieldsLogger when the underlying logger supports it.
func (l GlogAdapter) WithFields(fields map[string]any) Logger {
	if l.logger == nil {
		return NewFmtLogger(nil).WithFields(fields)
	}
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return GlogAdapter{logger: fl.WithFields(fields)}
	}
	return l
}
