package task

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/goliatone/go-errors"
)

// Call drives the task through validate -> execute -> finalize and always
// returns the finalized Result. Faults and unexpected errors become
// skipped/failed results and never propagate. The one exception is the
// programming contract: a missing business-logic implementation panics,
// since it is a bug and not a business outcome.
func (d *Definition) Call(ctx context.Context, seed map[string]any) *Result {
	res, contractErr := d.execute(ctx, seed)
	if contractErr != nil {
		panic(contractErr)
	}
	return res
}

// CallStrict behaves like Call but re-raises: when the finalized status is
// in the definition's halt set (default {failed}), the Fault wrapping the
// result is returned alongside it. Statuses outside the halt set are
// treated as a no-op continuation and return a nil error.
func (d *Definition) CallStrict(ctx context.Context, seed map[string]any) (*Result, error) {
	res, contractErr := d.execute(ctx, seed)
	if contractErr != nil {
		panic(contractErr)
	}
	if f := NewFault(res); f != nil && f.MatchesHalt(d.haltOn) {
		return res, f
	}
	return res, nil
}

// execute runs one full lifecycle. The returned error is non-nil only for
// programming-contract violations; every other outcome is recorded on the
// Result.
func (d *Definition) execute(ctx context.Context, seed map[string]any) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	// One chain per logical call tree: reuse the active one, otherwise this
	// call is the outermost and owns chain teardown. The chain never leaks
	// past this frame's ctx, so an unrelated follow-up Call on the caller's
	// ctx starts fresh.
	chain := ChainFromContext(ctx)
	outermost := chain == nil
	if outermost {
		chain = newChain()
	}
	ctx = withChain(ctx, chain)

	var bag *Context
	if parent := executionFromContext(ctx); parent != nil {
		bag = parent.context
		bag.merge(seed)
	} else {
		bag = NewContext(seed)
	}

	ex := &Execution{def: d, context: bag, chain: chain}
	ex.result = newResult(ex)
	chain.append(ex.result)
	ctx = withExecution(ctx, ex)

	logger := normalizeLogger(d.logger)

	contractErr := d.runLifecycle(ctx, ex, logger)
	d.finalize(ctx, ex, outermost, logger)

	return ex.result, contractErr
}

func (d *Definition) runLifecycle(ctx context.Context, ex *Execution, logger Logger) error {
	res := ex.result

	if err := d.callbacks.invoke(ctx, EventBeforeValidation, ex, d.hookMode, logger); err != nil {
		d.recordFailure(res, err)
		return nil
	}

	if res.IsSuccess() && d.verifier != nil {
		if errs := d.verifier.DefineAndVerify(ex); !errs.Empty() {
			// A normal failure, not an exception: business logic never runs
			// and the state goes initialized -> interrupted at finalize.
			res.Fail(errs.Message(),
				WithMetadata(map[string]any{"errors": errs.Map()}),
				WithCause(ErrValidation),
				WithoutHalt())
		}
	}

	if err := d.callbacks.invoke(ctx, EventAfterValidation, ex, d.hookMode, logger); err != nil {
		d.recordFailure(res, err)
		return nil
	}

	if !res.IsSuccess() {
		return nil
	}

	return d.runBusiness(ctx, ex, logger)
}

// runBusiness wraps the business-logic call with the middleware chain and
// converts its error outcomes into result transitions. On retryable errors
// it re-enters from the before_execution callbacks; validation is not
// re-run.
func (d *Definition) runBusiness(ctx context.Context, ex *Execution, logger Logger) error {
	res := ex.result

	for attempt := 0; ; attempt++ {
		if err := d.callbacks.invoke(ctx, EventBeforeExecution, ex, d.hookMode, logger); err != nil {
			d.recordFailure(res, err)
			return nil
		}

		// Executing fires inside the innermost continuation: middleware
		// that never calls through leaves the result in state=initialized.
		inner := func(ctx context.Context) error {
			if err := res.Executing(); err != nil {
				return err
			}
			return d.handler.Execute(ctx, ex)
		}

		err := recoverInvoke(ctx, d.middlewares.wrap(ex, inner))
		if err == nil {
			return nil
		}

		if stderrors.Is(err, ErrNotImplemented) {
			// Programming contract: propagate untouched.
			return err
		}

		if f, ok := AsFault(err); ok {
			if f.Result() != res {
				// A nested task unwound into us: adopt its outcome without
				// re-halting; the entry-point mode decides what escapes.
				res.Throw(f.Result(), WithoutHalt())
			}
			return nil
		}

		if d.retry.allows(attempt, err) {
			res.metadata["retries"] = attempt + 1
			logger.Warn("task=%s retrying attempt=%d: %v", d.name, attempt+1, err)
			d.retry.sleep(attempt, err)
			continue
		}

		res.Fail(fmt.Sprintf("[%T] %v", err, err), WithCause(err), WithoutHalt())
		return nil
	}
}

// recordFailure converts a fail-closed callback error into a failed result.
func (d *Definition) recordFailure(res *Result, err error) {
	res.Fail(err.Error(), WithCause(err), WithoutHalt())
}

// finalize transitions the result to its terminal state, fires the
// post-execution callback family, freezes the execution (and the context
// and chain when outermost) and logs the finalized result exactly once.
// Post-execution callbacks are always fail-open: the outcome is already
// settled, so their errors can only be logged.
func (d *Definition) finalize(ctx context.Context, ex *Execution, outermost bool, logger Logger) {
	res := ex.result

	// Middleware that short-circuited leaves an untouched result; Executed
	// would be an invalid transition, so the executed family is skipped.
	shortCircuited := res.IsInitialized() && res.IsSuccess()
	if !shortCircuited {
		if err := res.Executed(); err != nil {
			logger.Error("task=%s finalize transition failed: %v", d.name, err)
		}
	}

	d.callbacks.invoke(ctx, stateEvent(res.State()), ex, HookFailOpen, logger)
	if res.IsExecuted() {
		d.callbacks.invoke(ctx, EventOnExecuted, ex, HookFailOpen, logger)
	}
	d.callbacks.invoke(ctx, statusEvent(res.Status()), ex, HookFailOpen, logger)
	if res.IsGood() {
		d.callbacks.invoke(ctx, EventOnGood, ex, HookFailOpen, logger)
	}
	if res.IsBad() {
		d.callbacks.invoke(ctx, EventOnBad, ex, HookFailOpen, logger)
	}
	d.callbacks.invoke(ctx, EventAfterExecution, ex, HookFailOpen, logger)

	ex.freeze()
	if outermost {
		ex.context.freeze()
		ex.chain.freeze()
	}

	d.logResult(ctx, res, logger)
}

func (d *Definition) logResult(ctx context.Context, res *Result, logger Logger) {
	l := withLoggerFields(normalizeLogger(logger).WithContext(ctx), res.ToMap())
	switch {
	case res.IsFailed():
		l.Error("task finalized")
	case res.IsSkipped():
		l.Warn("task finalized")
	default:
		l.Info("task finalized")
	}
}

// recoverInvoke runs the wrapped continuation, converting panics in
// business logic into errors so they degrade into failed results. Contract
// violations re-panic: they indicate a bug, not a business outcome.
func recoverInvoke(ctx context.Context, next Next) (err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if e, ok := rec.(error); ok && stderrors.Is(e, ErrNotImplemented) {
			panic(rec)
		}

		stack := make([]byte, 8096)
		n := runtime.Stack(stack, false)
		cleaned := cleanStackTrace(stack[:n])

		if e, ok := rec.(error); ok {
			err = errors.Wrap(e, errors.CategoryInternal, "panic recovered in task execution").
				WithTextCode("TASK_PANIC").
				WithMetadata(map[string]any{"stack": string(cleaned)})
			return
		}
		err = errors.New(fmt.Sprintf("panic recovered in task execution: %v", rec), errors.CategoryInternal).
			WithTextCode("TASK_PANIC").
			WithMetadata(map[string]any{"stack": string(cleaned)})
	}()
	return next(ctx)
}

func cleanStackTrace(stack []byte) []byte {
	lines := strings.Split(string(stack), "\n")

	// we find the index after the panic line
	panicLineIndex := -1
	for i, line := range lines {
		if strings.Contains(line, "panic(") {
			panicLineIndex = i
			break
		}
	}

	// then remove everything before it
	if panicLineIndex >= 0 && panicLineIndex+2 < len(lines) {
		// remove the panic() call line & file reference line
		lines = lines[panicLineIndex+2:]
	}

	return []byte(strings.Join(lines, "\n"))
}
