package task

import "github.com/goliatone/go-errors"

// Context is the shared input/output bag for one call tree. Every task in a
// chain reads and writes the same instance; it is mutated sequentially
// (execution is synchronous within a chain) and frozen once the outermost
// task finalizes.
type Context struct {
	data   map[string]any
	frozen bool
}

// NewContext builds a context bag seeded with the given values.
func NewContext(seed map[string]any) *Context {
	data := make(map[string]any, len(seed))
	for k, v := range seed {
		data[k] = v
	}
	return &Context{data: data}
}

// Get returns the value for key, or nil when absent.
func (c *Context) Get(key string) any {
	v, _ := c.Fetch(key)
	return v
}

// Fetch returns the value for key and whether it was present.
func (c *Context) Fetch(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.data[key]
	return v, ok
}

// Set stores a value. It errors once the bag has been frozen.
func (c *Context) Set(key string, value any) error {
	if c.frozen {
		return errors.Wrap(ErrFrozen, errors.CategoryConflict, "context is read-only").
			WithMetadata(map[string]any{"key": key})
	}
	c.data[key] = value
	return nil
}

// Delete removes a key. It errors once the bag has been frozen.
func (c *Context) Delete(key string) error {
	if c.frozen {
		return errors.Wrap(ErrFrozen, errors.CategoryConflict, "context is read-only").
			WithMetadata(map[string]any{"key": key})
	}
	delete(c.data, key)
	return nil
}

// Has reports whether key is present.
func (c *Context) Has(key string) bool {
	_, ok := c.Fetch(key)
	return ok
}

// Len returns the number of stored entries.
func (c *Context) Len() int {
	if c == nil {
		return 0
	}
	return len(c.data)
}

// Map returns a shallow copy of the stored entries.
func (c *Context) Map() map[string]any {
	if c == nil {
		return nil
	}
	out := make(map[string]any, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}

// Frozen reports whether the bag has been sealed.
func (c *Context) Frozen() bool {
	return c != nil && c.frozen
}

func (c *Context) merge(seed map[string]any) {
	for k, v := range seed {
		c.data[k] = v
	}
}

func (c *Context) freeze() {
	if c != nil {
		c.frozen = true
	}
}
