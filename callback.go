package task

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
)

// Event identifies a fixed lifecycle emission point.
type Event string

const (
	EventBeforeValidation Event = "before_validation"
	EventAfterValidation  Event = "after_validation"
	EventBeforeExecution  Event = "before_execution"
	EventAfterExecution   Event = "after_execution"
	EventOnExecuted       Event = "on_executed"
	EventOnInitialized    Event = "on_initialized"
	EventOnExecuting      Event = "on_executing"
	EventOnComplete       Event = "on_complete"
	EventOnInterrupted    Event = "on_interrupted"
	EventOnSuccess        Event = "on_success"
	EventOnSkipped        Event = "on_skipped"
	EventOnFailed         Event = "on_failed"
	EventOnGood           Event = "on_good"
	EventOnBad            Event = "on_bad"
)

var knownEvents = map[Event]struct{}{
	EventBeforeValidation: {},
	EventAfterValidation:  {},
	EventBeforeExecution:  {},
	EventAfterExecution:   {},
	EventOnExecuted:       {},
	EventOnInitialized:    {},
	EventOnExecuting:      {},
	EventOnComplete:       {},
	EventOnInterrupted:    {},
	EventOnSuccess:        {},
	EventOnSkipped:        {},
	EventOnFailed:         {},
	EventOnGood:           {},
	EventOnBad:            {},
}

func stateEvent(s State) Event {
	return Event("on_" + string(s))
}

func statusEvent(s Status) Event {
	return Event("on_" + string(s))
}

// HookFailureMode controls callback error behavior: fail-open logs the
// error and continues, fail-closed surfaces it to the executor.
type HookFailureMode string

const (
	HookFailOpen   HookFailureMode = "fail_open"
	HookFailClosed HookFailureMode = "fail_closed"
)

func normalizeHookFailureMode(mode HookFailureMode) HookFailureMode {
	switch HookFailureMode(strings.ToLower(strings.TrimSpace(string(mode)))) {
	case HookFailClosed:
		return HookFailClosed
	default:
		return HookFailOpen
	}
}

// Condition guards a callback entry against the current execution.
type Condition func(ex *Execution) bool

// CallbackFunc is the closure variant of a callback callable.
type CallbackFunc func(ctx context.Context, ex *Execution, ev Event) error

// CallbackHandler is the object variant: anything exposing the uniform
// Call contract can be registered.
type CallbackHandler interface {
	Call(ctx context.Context, ex *Execution, ev Event) error
}

type callbackEntry struct {
	fn     CallbackFunc
	ifs    []Condition
	unless []Condition
}

func (e callbackEntry) matches(ex *Execution) bool {
	for _, cond := range e.ifs {
		if cond != nil && !cond(ex) {
			return false
		}
	}
	for _, cond := range e.unless {
		if cond != nil && cond(ex) {
			return false
		}
	}
	return true
}

// Guard restricts when a registered callback runs.
type Guard func(*callbackEntry)

// If runs the callback only when cond evaluates true.
func If(cond Condition) Guard {
	return func(e *callbackEntry) {
		e.ifs = append(e.ifs, cond)
	}
}

// Unless runs the callback only when cond evaluates false.
func Unless(cond Condition) Guard {
	return func(e *callbackEntry) {
		e.unless = append(e.unless, cond)
	}
}

// When is the boolean-constant guard variant.
func When(enabled bool) Guard {
	return If(func(*Execution) bool { return enabled })
}

// CallbackRegistry maps lifecycle events to ordered guarded callables.
// Entries are invoked in registration order.
type CallbackRegistry struct {
	entries map[Event][]callbackEntry
}

// NewCallbackRegistry creates an empty registry.
func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{entries: make(map[Event][]callbackEntry)}
}

// Register appends a callback closure for event. Unknown event names are a
// configuration error and are rejected here, not at dispatch time.
func (c *CallbackRegistry) Register(ev Event, fn CallbackFunc, guards ...Guard) error {
	if _, ok := knownEvents[ev]; !ok {
		return errors.New(fmt.Sprintf("unknown lifecycle event %q", ev), errors.CategoryBadInput).
			WithTextCode("UNKNOWN_EVENT")
	}
	if fn == nil {
		return errors.New("callback cannot be nil", errors.CategoryBadInput).
			WithTextCode("NIL_CALLBACK")
	}
	entry := callbackEntry{fn: fn}
	for _, g := range guards {
		if g != nil {
			g(&entry)
		}
	}
	c.entries[ev] = append(c.entries[ev], entry)
	return nil
}

// RegisterHandler appends an object callable, resolved once at registration.
func (c *CallbackRegistry) RegisterHandler(ev Event, h CallbackHandler, guards ...Guard) error {
	if h == nil {
		return errors.New("callback handler cannot be nil", errors.CategoryBadInput).
			WithTextCode("NIL_CALLBACK")
	}
	return c.Register(ev, h.Call, guards...)
}

// Len returns the number of entries registered for event.
func (c *CallbackRegistry) Len(ev Event) int {
	if c == nil {
		return 0
	}
	return len(c.entries[ev])
}

// merge appends other's entries after c's, preserving registration order
// within each source. Used to layer per-definition callbacks on top of
// global ones.
func (c *CallbackRegistry) merge(other *CallbackRegistry) {
	if other == nil {
		return
	}
	for ev, entries := range other.entries {
		c.entries[ev] = append(c.entries[ev], entries...)
	}
}

// invoke runs the entries for event in registration order. Guard misses
// are silent. Entry errors follow mode: fail-open warns through the logger
// and continues, fail-closed stops and returns the error.
func (c *CallbackRegistry) invoke(ctx context.Context, ev Event, ex *Execution, mode HookFailureMode, logger Logger) error {
	if c == nil || len(c.entries[ev]) == 0 {
		return nil
	}
	mode = normalizeHookFailureMode(mode)
	for idx, entry := range c.entries[ev] {
		if !entry.matches(ex) {
			continue
		}
		if err := entry.fn(ctx, ex, ev); err != nil {
			if mode == HookFailClosed {
				return errors.Wrap(err, errors.CategoryHandler, "callback failed").
					WithTextCode("CALLBACK_FAILED").
					WithMetadata(map[string]any{
						"event": string(ev),
						"index": idx,
						"task":  ex.Name(),
					})
			}
			normalizeLogger(logger).WithContext(ctx).
				Warn("callback failed task=%s event=%s index=%d: %v", ex.Name(), ev, idx, err)
		}
	}
	return nil
}
