package middlewares

import (
	"context"

	task "github.com/goliatone/go-task"
)

// CorrelationKey is where Correlation stores the chain id in the context
// bag.
const CorrelationKey = "correlation_id"

// Correlation exposes the chain id to business logic by writing it into
// the shared context bag before the call proceeds. Downstream tasks in the
// same chain see the same id.
type Correlation struct{}

// Execute implements task.Middleware.
func (Correlation) Execute(ctx context.Context, ex *task.Execution, next task.Next) error {
	if chain := ex.Chain(); chain != nil && !ex.Context().Has(CorrelationKey) {
		if err := ex.Context().Set(CorrelationKey, chain.ID()); err != nil {
			return err
		}
	}
	return next(ctx)
}
