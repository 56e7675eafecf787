package middlewares

import (
	"context"
	"time"

	task "github.com/goliatone/go-task"
)

// Timeout wraps the continuation with a deadline. Expiry surfaces as the
// context error from business logic, which the executor converts into a
// failed result; the engine itself has no cancellation concept.
type Timeout struct {
	// Duration bounds the wrapped call; zero means no timeout.
	Duration time.Duration
	// Deadline bounds the wrapped call at an absolute time when non-zero.
	Deadline time.Time
}

// Execute implements task.Middleware.
func (t Timeout) Execute(ctx context.Context, ex *task.Execution, next task.Next) error {
	ctx, cancel := t.withSettings(ctx)
	defer cancel()
	return next(ctx)
}

func (t Timeout) withSettings(parent context.Context) (context.Context, context.CancelFunc) {
	switch {
	case t.Duration != 0 && !t.Deadline.IsZero():
		ctx, cancelTimeout := context.WithTimeout(parent, t.Duration)
		ctxDeadline, cancelDeadline := context.WithDeadline(ctx, t.Deadline)
		return ctxDeadline, func() {
			cancelDeadline()
			cancelTimeout()
		}
	case t.Duration != 0:
		return context.WithTimeout(parent, t.Duration)
	case !t.Deadline.IsZero():
		return context.WithDeadline(parent, t.Deadline)
	default:
		return parent, func() {}
	}
}
