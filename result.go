package task

import (
	"fmt"
	"time"

	"github.com/goliatone/go-errors"
)

// State is the execution lifecycle phase of a Result.
type State string

const (
	StateInitialized State = "initialized"
	StateExecuting   State = "executing"
	StateComplete    State = "complete"
	StateInterrupted State = "interrupted"
)

// Status is the business outcome of a Result. State and Status are
// deliberately separate: a workflow can tell "did not run to completion
// because something upstream blew up" apart from "ran fine but decided to
// skip/fail".
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

type outcomeOptions struct {
	metadata map[string]any
	cause    error
	hasCause bool
	halt     bool
}

// OutcomeOption configures Skip, Fail and Throw calls.
type OutcomeOption func(*outcomeOptions)

// WithMetadata attaches metadata entries to the outcome.
func WithMetadata(meta map[string]any) OutcomeOption {
	return func(o *outcomeOptions) {
		if o.metadata == nil {
			o.metadata = make(map[string]any, len(meta))
		}
		for k, v := range meta {
			o.metadata[k] = v
		}
	}
}

// WithCause records the underlying error that produced the outcome.
func WithCause(err error) OutcomeOption {
	return func(o *outcomeOptions) {
		o.cause = err
		o.hasCause = true
	}
}

// WithoutHalt records the outcome without returning a Fault; execution
// continues and the executor picks the status up at finalize.
func WithoutHalt() OutcomeOption {
	return func(o *outcomeOptions) {
		o.halt = false
	}
}

func applyOutcomeOptions(opts []OutcomeOption) outcomeOptions {
	o := outcomeOptions{halt: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Result records one task execution: lifecycle state, business status,
// reason, metadata and failure provenance. It is mutated only by its owning
// execution and becomes read-only once the executor finalizes it.
type Result struct {
	execution *Execution
	chain     *Chain
	index     int

	state    State
	status   Status
	reason   string
	metadata map[string]any
	cause    error

	startedAt  time.Time
	finishedAt time.Time
	frozen     bool
}

func newResult(ex *Execution) *Result {
	return &Result{
		execution: ex,
		index:     -1,
		state:     StateInitialized,
		status:    StatusSuccess,
		metadata:  make(map[string]any),
	}
}

// Execution returns the owning execution.
func (r *Result) Execution() *Execution { return r.execution }

// Chain returns the chain this result belongs to.
func (r *Result) Chain() *Chain { return r.chain }

// Index returns the position of this result in its chain, insertion order
// matching execution order.
func (r *Result) Index() int { return r.index }

// State returns the current lifecycle state.
func (r *Result) State() State { return r.state }

// Status returns the current business status.
func (r *Result) Status() Status { return r.status }

// Reason returns the human-readable reason recorded by Skip or Fail.
func (r *Result) Reason() string { return r.reason }

// Cause returns the underlying error recorded by Skip, Fail or Throw.
func (r *Result) Cause() error { return r.cause }

// Metadata returns a shallow copy of the metadata map.
func (r *Result) Metadata() map[string]any {
	out := make(map[string]any, len(r.metadata))
	for k, v := range r.metadata {
		out[k] = v
	}
	return out
}

// Meta returns a single metadata value.
func (r *Result) Meta(key string) (any, bool) {
	v, ok := r.metadata[key]
	return v, ok
}

// Frozen reports whether the result has been finalized.
func (r *Result) Frozen() bool { return r.frozen }

// Runtime returns how long execution took; zero until finalized.
func (r *Result) Runtime() time.Duration {
	if r.startedAt.IsZero() || r.finishedAt.IsZero() {
		return 0
	}
	return r.finishedAt.Sub(r.startedAt)
}

func (r *Result) IsInitialized() bool { return r.state == StateInitialized }
func (r *Result) IsExecuting() bool   { return r.state == StateExecuting }
func (r *Result) IsComplete() bool    { return r.state == StateComplete }
func (r *Result) IsInterrupted() bool { return r.state == StateInterrupted }

// IsExecuted reports whether the result reached a terminal state.
func (r *Result) IsExecuted() bool { return r.IsComplete() || r.IsInterrupted() }

func (r *Result) IsSuccess() bool { return r.status == StatusSuccess }
func (r *Result) IsSkipped() bool { return r.status == StatusSkipped }
func (r *Result) IsFailed() bool  { return r.status == StatusFailed }

// IsGood reports any status other than failed.
func (r *Result) IsGood() bool { return r.status != StatusFailed }

// IsBad reports any status other than success.
func (r *Result) IsBad() bool { return r.status != StatusSuccess }

// Executing transitions initialized -> executing. Re-entry while already
// executing is a no-op; any other state errors.
func (r *Result) Executing() error {
	if r.frozen {
		return r.frozenError("executing")
	}
	switch r.state {
	case StateExecuting:
		return nil
	case StateInitialized:
		r.state = StateExecuting
		r.startedAt = time.Now()
		return nil
	default:
		return r.transitionError(StateExecuting)
	}
}

// Complete transitions executing -> complete. Idempotent when already
// complete; errors from any other state.
func (r *Result) Complete() error {
	if r.frozen {
		return r.frozenError("complete")
	}
	switch r.state {
	case StateComplete:
		return nil
	case StateExecuting:
		r.state = StateComplete
		return nil
	default:
		return r.transitionError(StateComplete)
	}
}

// Interrupt transitions any non-complete state -> interrupted. A completed
// result cannot be retroactively interrupted.
func (r *Result) Interrupt() error {
	if r.frozen {
		return r.frozenError("interrupt")
	}
	switch r.state {
	case StateInterrupted:
		return nil
	case StateComplete:
		return r.transitionError(StateInterrupted)
	default:
		r.state = StateInterrupted
		return nil
	}
}

// Executed routes to Complete when the status is success, Interrupt
// otherwise. The executor calls it exactly once at the end of execution,
// before the post-execution callbacks.
func (r *Result) Executed() error {
	if r.status == StatusSuccess {
		return r.Complete()
	}
	return r.Interrupt()
}

// Skip records a skipped outcome. Valid only while the status is success;
// re-skipping is a no-op that preserves the original reason and metadata.
// Unless WithoutHalt is given, the returned error is the *Fault that
// unwinds execution.
func (r *Result) Skip(reason string, opts ...OutcomeOption) error {
	return r.settle(StatusSkipped, reason, opts)
}

// Fail records a failed outcome, symmetric to Skip.
func (r *Result) Fail(reason string, opts ...OutcomeOption) error {
	return r.settle(StatusFailed, reason, opts)
}

func (r *Result) settle(status Status, reason string, opts []OutcomeOption) error {
	o := applyOutcomeOptions(opts)

	if r.frozen {
		return r.frozenError(string(status))
	}

	if r.status == status {
		// Idempotent re-entry keeps the original reason/metadata.
		if o.halt {
			return r.Halt()
		}
		return nil
	}

	if r.status != StatusSuccess {
		return transitionError(
			fmt.Sprintf("cannot mark %s result as %s", r.status, status),
			map[string]any{"task": r.taskName(), "status": string(r.status)},
		)
	}

	if reason == "" {
		reason = translate(r.translator(), MsgNoReason)
	}

	r.status = status
	r.reason = reason
	r.metadata["reason"] = reason
	for k, v := range o.metadata {
		r.metadata[k] = v
	}
	if o.hasCause {
		r.cause = o.cause
	}

	if o.halt {
		return r.Halt()
	}
	return nil
}

// Halt returns the Fault for a non-success result, nil when the status is
// still success.
func (r *Result) Halt() error {
	if r.status == StatusSuccess {
		return nil
	}
	return NewFault(r)
}

// Throw adopts another result's outcome as this result's own: state, status
// and reason are copied, metadata merged with explicit overrides winning.
// Unless WithoutHalt is given, the adopted outcome is immediately halted.
func (r *Result) Throw(other *Result, opts ...OutcomeOption) error {
	o := applyOutcomeOptions(opts)

	if r.frozen {
		return r.frozenError("throw")
	}
	if other == nil || other == r {
		return nil
	}

	r.state = other.state
	r.status = other.status
	r.reason = other.reason
	for k, v := range other.metadata {
		r.metadata[k] = v
	}
	for k, v := range o.metadata {
		r.metadata[k] = v
	}
	if o.hasCause {
		r.cause = o.cause
	} else if other.cause != nil {
		r.cause = other.cause
	}

	if o.halt {
		return r.Halt()
	}
	return nil
}

// CausedFailure returns the result that originated the failure in this
// chain: the deepest failed result, found scanning backward from the end.
// It returns nil when this result is not failed.
func (r *Result) CausedFailure() *Result {
	if !r.IsFailed() {
		return nil
	}
	if r.chain == nil {
		return r
	}
	results := r.chain.results
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].IsFailed() {
			return results[i]
		}
	}
	return nil
}

// ThrewFailure returns the frame that re-raised this failure upward: the
// nearest failed result appended before this one, or the first failed
// result in the chain when none precedes it (the outermost failed result
// is its own propagator). It returns nil when this result is not failed.
func (r *Result) ThrewFailure() *Result {
	if !r.IsFailed() {
		return nil
	}
	if r.chain == nil {
		return r
	}
	results := r.chain.results
	for i := r.index - 1; i >= 0; i-- {
		if i < len(results) && results[i].IsFailed() {
			return results[i]
		}
	}
	for _, res := range results {
		if res.IsFailed() {
			return res
		}
	}
	return nil
}

// IsCausedFailure reports whether this result originated the chain failure.
func (r *Result) IsCausedFailure() bool {
	return r.IsFailed() && r.CausedFailure() == r
}

// IsThrewFailure reports whether this result is the propagator returned by
// ThrewFailure.
func (r *Result) IsThrewFailure() bool {
	return r.IsFailed() && r.ThrewFailure() == r
}

// IsThrownFailure reports a failure that was propagated here rather than
// originated here.
func (r *Result) IsThrownFailure() bool {
	return r.IsFailed() && !r.IsCausedFailure()
}

// Outcome surfaces the more informative signal: the state for results that
// never ran or carry a propagated failure, the status otherwise.
func (r *Result) Outcome() string {
	if r.IsInitialized() || r.IsThrownFailure() {
		return string(r.state)
	}
	return string(r.status)
}

// ToMap returns the serialized form of the result.
func (r *Result) ToMap() map[string]any {
	out := map[string]any{
		"task":     r.taskName(),
		"index":    r.index,
		"state":    string(r.state),
		"status":   string(r.status),
		"outcome":  r.Outcome(),
		"good":     r.IsGood(),
		"bad":      r.IsBad(),
		"metadata": r.Metadata(),
		"runtime":  r.Runtime().String(),
	}
	if r.chain != nil {
		out["chain_id"] = r.chain.ID()
	}
	if r.reason != "" {
		out["reason"] = r.reason
	}
	if r.cause != nil {
		out["cause"] = r.cause.Error()
	}
	if caused := r.CausedFailure(); caused != nil && caused != r {
		out["caused_failure"] = caused.ref()
	}
	if threw := r.ThrewFailure(); threw != nil && threw != r {
		out["threw_failure"] = threw.ref()
	}
	return out
}

func (r *Result) ref() map[string]any {
	return map[string]any{
		"task":   r.taskName(),
		"index":  r.index,
		"state":  string(r.state),
		"status": string(r.status),
	}
}

func (r *Result) String() string {
	return fmt.Sprintf("task=%s state=%s status=%s outcome=%s", r.taskName(), r.state, r.status, r.Outcome())
}

func (r *Result) taskName() string {
	if r.execution == nil {
		return ""
	}
	return r.execution.Name()
}

func (r *Result) translator() Translator {
	if r.execution == nil || r.execution.def == nil {
		return nil
	}
	return r.execution.def.translator
}

func (r *Result) freeze() {
	if r.frozen {
		return
	}
	if r.finishedAt.IsZero() {
		r.finishedAt = time.Now()
	}
	r.frozen = true
}

func (r *Result) frozenError(op string) error {
	return errors.Wrap(ErrFrozen, errors.CategoryConflict, fmt.Sprintf("cannot %s a frozen result", op)).
		WithMetadata(map[string]any{"task": r.taskName(), "state": string(r.state), "status": string(r.status)})
}

func (r *Result) transitionError(to State) error {
	return transitionError(
		fmt.Sprintf("invalid state transition %s -> %s", r.state, to),
		map[string]any{"task": r.taskName(), "state": string(r.state)},
	)
}
