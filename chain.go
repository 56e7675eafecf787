package task

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

// Chain is the ordered, append-only list of Results for one logical
// top-level invocation and every nested task call it triggered. The first
// result is the outermost task. Chains are scoped to a call tree through
// context.Context, never a process-wide global, so independent concurrent
// invocations cannot observe each other's results.
type Chain struct {
	id      string
	results []*Result
	frozen  bool
}

func newChain() *Chain {
	return &Chain{id: newChainID()}
}

// ID returns the correlation identifier for this chain.
func (c *Chain) ID() string { return c.id }

// Len returns the number of results appended so far.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.results)
}

// Results returns a copy of the appended results in execution order.
func (c *Chain) Results() []*Result {
	if c == nil {
		return nil
	}
	out := make([]*Result, len(c.results))
	copy(out, c.results)
	return out
}

// Index returns the insertion position of a result, -1 when it does not
// belong to this chain.
func (c *Chain) Index(r *Result) int {
	if c == nil || r == nil {
		return -1
	}
	for i, res := range c.results {
		if res == r {
			return i
		}
	}
	return -1
}

// First returns the outermost result, nil while the chain is empty.
func (c *Chain) First() *Result {
	if c.Len() == 0 {
		return nil
	}
	return c.results[0]
}

// Last returns the most recently appended result.
func (c *Chain) Last() *Result {
	if c.Len() == 0 {
		return nil
	}
	return c.results[len(c.results)-1]
}

// Frozen reports whether the chain has been sealed by the outermost
// finalization.
func (c *Chain) Frozen() bool {
	return c != nil && c.frozen
}

func (c *Chain) append(r *Result) {
	r.chain = c
	r.index = len(c.results)
	c.results = append(c.results, r)
}

func (c *Chain) freeze() {
	if c != nil {
		c.frozen = true
	}
}

type chainKey struct{}

// ChainFromContext returns the chain active on ctx, nil when the next Call
// would start a fresh chain.
func ChainFromContext(ctx context.Context) *Chain {
	if ctx == nil {
		return nil
	}
	if c, ok := ctx.Value(chainKey{}).(*Chain); ok {
		return c
	}
	return nil
}

func withChain(ctx context.Context, c *Chain) context.Context {
	return context.WithValue(ctx, chainKey{}, c)
}

func newChainID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "chain-unavailable"
	}
	return hex.EncodeToString(buf)
}
