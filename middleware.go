package task

import "context"

// Next is the continuation a middleware calls, at most once, to proceed to
// the rest of the chain. Declining to call it short-circuits execution.
type Next func(ctx context.Context) error

// Middleware decorates task execution with cross-cutting behavior.
type Middleware interface {
	Execute(ctx context.Context, ex *Execution, next Next) error
}

// MiddlewareFunc is an adapter that lets you use a function as Middleware.
type MiddlewareFunc func(ctx context.Context, ex *Execution, next Next) error

// Execute calls the underlying function.
func (f MiddlewareFunc) Execute(ctx context.Context, ex *Execution, next Next) error {
	return f(ctx, ex, next)
}

// MiddlewareFactory builds a fresh middleware instance for each call, for
// components that carry per-call state.
type MiddlewareFactory func(ex *Execution) Middleware

type middlewareEntry struct {
	shared  Middleware
	factory MiddlewareFactory
}

func (e middlewareEntry) instance(ex *Execution) Middleware {
	if e.factory != nil {
		return e.factory(ex)
	}
	return e.shared
}

// MiddlewareChain is the ordered list of middleware wrapping a task call.
// First registered is outermost; the list is immutable once an execution
// chain has been built for a call.
type MiddlewareChain struct {
	entries []middlewareEntry
}

// NewMiddlewareChain creates a chain with the given shared middleware.
func NewMiddlewareChain(ms ...Middleware) *MiddlewareChain {
	c := &MiddlewareChain{}
	c.Use(ms...)
	return c
}

// Use appends shared (stateless) middleware instances.
func (c *MiddlewareChain) Use(ms ...Middleware) *MiddlewareChain {
	for _, m := range ms {
		if m != nil {
			c.entries = append(c.entries, middlewareEntry{shared: m})
		}
	}
	return c
}

// UseFactory appends a per-call middleware factory.
func (c *MiddlewareChain) UseFactory(f MiddlewareFactory) *MiddlewareChain {
	if f != nil {
		c.entries = append(c.entries, middlewareEntry{factory: f})
	}
	return c
}

// Len returns the number of registered entries.
func (c *MiddlewareChain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// wrap folds the entries right-to-left around inner so the first registered
// middleware becomes the outermost wrapper. An empty chain is a direct
// passthrough.
func (c *MiddlewareChain) wrap(ex *Execution, inner Next) Next {
	if c.Len() == 0 {
		return inner
	}
	next := inner
	for i := len(c.entries) - 1; i >= 0; i-- {
		m := c.entries[i].instance(ex)
		if m == nil {
			continue
		}
		prev := next
		mw := m
		next = func(ctx context.Context) error {
			return mw.Execute(ctx, ex, prev)
		}
	}
	return next
}

func (c *MiddlewareChain) clone() *MiddlewareChain {
	if c == nil {
		return &MiddlewareChain{}
	}
	cp := &MiddlewareChain{entries: make([]middlewareEntry, len(c.entries))}
	copy(cp.entries, c.entries)
	return cp
}
