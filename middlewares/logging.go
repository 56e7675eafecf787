package middlewares

import (
	"context"
	"time"

	task "github.com/goliatone/go-task"
)

// Logging traces task execution through the engine logger: one line when
// the wrapped call starts, one when it returns, with the elapsed time.
type Logging struct {
	Logger task.Logger
}

// Execute implements task.Middleware.
func (l Logging) Execute(ctx context.Context, ex *task.Execution, next task.Next) error {
	logger := l.Logger
	if logger == nil {
		logger = task.NewFmtLogger(nil)
	}
	logger = logger.WithContext(ctx)

	logger.Debug("task=%s starting", ex.Name())
	start := time.Now()

	err := next(ctx)

	elapsed := time.Since(start)
	if err != nil {
		logger.Debug("task=%s returned in %s: %v", ex.Name(), elapsed, err)
		return err
	}
	logger.Debug("task=%s returned in %s", ex.Name(), elapsed)
	return nil
}
