package task

import (
	"fmt"
	"sort"
	"strings"
)

// Errors is the field -> messages collection a Verifier returns. An empty
// collection means validation passed.
type Errors map[string][]string

// Add appends a message for field.
func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

// Empty reports whether validation passed.
func (e Errors) Empty() bool {
	return len(e) == 0
}

// Message aggregates all messages into a deterministic single line, fields
// sorted alphabetically.
func (e Errors) Message() string {
	if e.Empty() {
		return ""
	}
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s %s", f, strings.Join(e[f], ", ")))
	}
	return strings.Join(parts, ". ")
}

// Map returns the collection as a plain map for metadata attachment.
func (e Errors) Map() map[string]any {
	out := make(map[string]any, len(e))
	for f, msgs := range e {
		cp := make([]string, len(msgs))
		copy(cp, msgs)
		out[f] = cp
	}
	return out
}

// Verifier is the parameter definition/validation collaborator. The
// executor calls it during pre-execution; a non-empty collection turns into
// a failed result before business logic ever runs.
type Verifier interface {
	DefineAndVerify(ex *Execution) Errors
}

// VerifierFunc adapts a function to the Verifier contract.
type VerifierFunc func(ex *Execution) Errors

// DefineAndVerify calls the underlying function.
func (f VerifierFunc) DefineAndVerify(ex *Execution) Errors {
	return f(ex)
}
