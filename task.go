package task

import (
	"context"

	"github.com/goliatone/go-errors"
)

// Task is a single unit of business logic driven through the lifecycle by
// the executor. Within Execute, business code reads and writes the shared
// context bag and settles its outcome through the execution helpers:
//
//	return ex.Skip("nothing to do")
//	return ex.Fail("charge rejected", task.WithCause(err))
//	return ex.Throw(sub.Result())
//
// Returning nil leaves the result successful.
type Task interface {
	Execute(ctx context.Context, ex *Execution) error
}

// TaskFunc is an adapter that lets you use a function as a Task.
type TaskFunc func(ctx context.Context, ex *Execution) error

// Execute calls the underlying function.
func (f TaskFunc) Execute(ctx context.Context, ex *Execution) error {
	return f(ctx, ex)
}

// notImplemented stands in when a definition carries no handler. Returning
// the contract sentinel keeps "forgot to implement" loud instead of
// becoming a failed result.
type notImplemented struct{}

func (notImplemented) Execute(context.Context, *Execution) error {
	return ErrNotImplemented
}

// DefaultHaltOn is the global default halt-status set: halt on failed,
// continue past skipped.
var DefaultHaltOn = []Status{StatusFailed}

// Definition binds a Task to its lifecycle configuration: middleware,
// callbacks, parameter verification, halt policy, retry policy and logging.
// Definitions are built once and reused; each Call produces a fresh
// Execution.
type Definition struct {
	name        string
	handler     Task
	middlewares *MiddlewareChain
	callbacks   *CallbackRegistry
	verifier    Verifier
	haltOn      []Status
	hookMode    HookFailureMode
	retry       *RetryPolicy
	logger      Logger
	translator  Translator
}

// Option configures a Definition at build time.
type Option func(*Definition) error

// New builds a task definition. A nil handler yields ErrNotImplemented at
// execution time, which always propagates to the caller.
func New(name string, handler Task, opts ...Option) (*Definition, error) {
	if name == "" {
		return nil, errors.New("task name cannot be empty", errors.CategoryBadInput).
			WithTextCode("EMPTY_TASK_NAME")
	}
	if handler == nil {
		handler = notImplemented{}
	}
	d := &Definition{
		name:        name,
		handler:     handler,
		middlewares: &MiddlewareChain{},
		callbacks:   NewCallbackRegistry(),
		haltOn:      DefaultHaltOn,
		hookMode:    HookFailOpen,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// NewFunc builds a definition from a plain function.
func NewFunc(name string, fn TaskFunc, opts ...Option) (*Definition, error) {
	return New(name, fn, opts...)
}

// Name returns the definition name.
func (d *Definition) Name() string { return d.name }

// HaltOn returns the configured halt-status set.
func (d *Definition) HaltOn() []Status {
	out := make([]Status, len(d.haltOn))
	copy(out, d.haltOn)
	return out
}

// WithMiddleware appends shared middleware instances, first registered
// outermost.
func WithMiddleware(ms ...Middleware) Option {
	return func(d *Definition) error {
		d.middlewares.Use(ms...)
		return nil
	}
}

// WithMiddlewareFactory appends a per-call middleware factory.
func WithMiddlewareFactory(f MiddlewareFactory) Option {
	return func(d *Definition) error {
		d.middlewares.UseFactory(f)
		return nil
	}
}

// WithCallback registers a guarded lifecycle callback.
func WithCallback(ev Event, fn CallbackFunc, guards ...Guard) Option {
	return func(d *Definition) error {
		return d.callbacks.Register(ev, fn, guards...)
	}
}

// WithCallbackHandler registers an object callable for a lifecycle event.
func WithCallbackHandler(ev Event, h CallbackHandler, guards ...Guard) Option {
	return func(d *Definition) error {
		return d.callbacks.RegisterHandler(ev, h, guards...)
	}
}

// WithVerifier sets the parameter validation collaborator.
func WithVerifier(v Verifier) Option {
	return func(d *Definition) error {
		d.verifier = v
		return nil
	}
}

// WithParams sets the built-in declarative parameter verifier.
func WithParams(ps ...Param) Option {
	return WithVerifier(Params(ps))
}

// WithHaltOn overrides the halt-status set for strict calls and enclosing
// workflows.
func WithHaltOn(statuses ...Status) Option {
	return func(d *Definition) error {
		normalized, err := normalizeHaltSet(statuses)
		if err != nil {
			return err
		}
		d.haltOn = normalized
		return nil
	}
}

// WithRetry sets the retry policy applied to unexpected errors.
func WithRetry(p *RetryPolicy) Option {
	return func(d *Definition) error {
		d.retry = p
		return nil
	}
}

// WithLogger sets the logger finalized results are written to.
func WithLogger(l Logger) Option {
	return func(d *Definition) error {
		d.logger = l
		return nil
	}
}

// WithHookFailureMode controls callback error behavior.
func WithHookFailureMode(mode HookFailureMode) Option {
	return func(d *Definition) error {
		d.hookMode = normalizeHookFailureMode(mode)
		return nil
	}
}

// WithTranslator sets the locale collaborator for default reason strings.
func WithTranslator(tr Translator) Option {
	return func(d *Definition) error {
		d.translator = tr
		return nil
	}
}

// normalizeHaltSet validates and dedupes a halt-status set. Halting on
// success is rejected: success never unwinds.
func normalizeHaltSet(statuses []Status) ([]Status, error) {
	seen := make(map[Status]struct{}, len(statuses))
	out := make([]Status, 0, len(statuses))
	for _, s := range statuses {
		switch s {
		case StatusSkipped, StatusFailed:
		default:
			return nil, errors.New("invalid halt status", errors.CategoryBadInput).
				WithTextCode("INVALID_HALT_STATUS").
				WithMetadata(map[string]any{"status": string(s)})
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// Execution is one run of a task: the shared context bag, the result under
// construction, and the chain the run belongs to. It is handed to business
// logic, middleware and callbacks, and frozen at finalization.
type Execution struct {
	def     *Definition
	context *Context
	result  *Result
	chain   *Chain
	frozen  bool
}

// Name returns the task definition name.
func (e *Execution) Name() string {
	if e.def == nil {
		return ""
	}
	return e.def.name
}

// Definition returns the definition driving this execution.
func (e *Execution) Definition() *Definition { return e.def }

// Context returns the shared context bag.
func (e *Execution) Context() *Context { return e.context }

// Result returns the result under construction.
func (e *Execution) Result() *Result { return e.result }

// Chain returns the chain this execution appended to.
func (e *Execution) Chain() *Chain { return e.chain }

// Frozen reports whether the execution has been finalized.
func (e *Execution) Frozen() bool { return e.frozen }

// Skip settles this execution's result as skipped; see Result.Skip.
func (e *Execution) Skip(reason string, opts ...OutcomeOption) error {
	return e.result.Skip(reason, opts...)
}

// Fail settles this execution's result as failed; see Result.Fail.
func (e *Execution) Fail(reason string, opts ...OutcomeOption) error {
	return e.result.Fail(reason, opts...)
}

// Throw adopts a sub-task's non-success result as this execution's own
// outcome; see Result.Throw.
func (e *Execution) Throw(other *Result, opts ...OutcomeOption) error {
	return e.result.Throw(other, opts...)
}

func (e *Execution) freeze() {
	e.result.freeze()
	e.frozen = true
}

type executionKey struct{}

func executionFromContext(ctx context.Context) *Execution {
	if ctx == nil {
		return nil
	}
	if ex, ok := ctx.Value(executionKey{}).(*Execution); ok {
		return ex
	}
	return nil
}

func withExecution(ctx context.Context, ex *Execution) context.Context {
	return context.WithValue(ctx, executionKey{}, ex)
}
