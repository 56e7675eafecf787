package task

import (
	"context"

	"github.com/goliatone/go-errors"
)

// Group is one ordered batch of tasks inside a workflow, with optional
// guards and a halt-status override local to the group.
type Group struct {
	Tasks  []*Definition
	If     Condition
	Unless Condition
	// Halt overrides the workflow halt set for this group; nil inherits.
	Halt []Status
}

// GroupOption configures a group appended through Process.
type GroupOption func(*Group)

// GroupIf runs the group only when cond evaluates true against the
// workflow execution.
func GroupIf(cond Condition) GroupOption {
	return func(g *Group) { g.If = cond }
}

// GroupUnless skips the group when cond evaluates true.
func GroupUnless(cond Condition) GroupOption {
	return func(g *Group) { g.Unless = cond }
}

// GroupHalt overrides the halt-status set for this group only.
func GroupHalt(statuses ...Status) GroupOption {
	return func(g *Group) { g.Halt = statuses }
}

// Workflow composes ordered groups of tasks executed sequentially against
// the shared context. It is itself a Definition, so workflows nest inside
// other workflows and inherit the full lifecycle: middleware, callbacks and
// halt policy all apply to the workflow as a whole.
type Workflow struct {
	def    *Definition
	groups []Group
}

// NewWorkflow builds a workflow definition. Options apply to the enclosing
// definition; WithHaltOn doubles as the workflow-level default halt set for
// groups without an override.
func NewWorkflow(name string, opts ...Option) (*Workflow, error) {
	w := &Workflow{}
	def, err := New(name, TaskFunc(w.run), opts...)
	if err != nil {
		return nil, err
	}
	w.def = def
	return w, nil
}

// Definition returns the underlying definition, e.g. to nest this workflow
// as a task in another workflow's group.
func (w *Workflow) Definition() *Definition { return w.def }

// Name returns the workflow name.
func (w *Workflow) Name() string { return w.def.Name() }

// Process appends an ordered group of tasks. Declared order is execution
// order, both across groups and within one.
func (w *Workflow) Process(defs []*Definition, opts ...GroupOption) error {
	if len(defs) == 0 {
		return errors.New("workflow group needs at least one task", errors.CategoryBadInput).
			WithTextCode("EMPTY_WORKFLOW_GROUP")
	}
	for _, def := range defs {
		if def == nil {
			return errors.New("workflow group task cannot be nil", errors.CategoryBadInput).
				WithTextCode("NIL_WORKFLOW_TASK")
		}
	}

	g := Group{Tasks: defs}
	for _, opt := range opts {
		if opt != nil {
			opt(&g)
		}
	}

	if g.Halt != nil {
		normalized, err := normalizeHaltSet(g.Halt)
		if err != nil {
			return err
		}
		g.Halt = normalized
	}

	w.groups = append(w.groups, g)
	return nil
}

// Call executes the workflow, non-raising; see Definition.Call.
func (w *Workflow) Call(ctx context.Context, seed map[string]any) *Result {
	return w.def.Call(ctx, seed)
}

// CallStrict executes the workflow, raising; see Definition.CallStrict.
func (w *Workflow) CallStrict(ctx context.Context, seed map[string]any) (*Result, error) {
	return w.def.CallStrict(ctx, seed)
}

// run is the workflow business logic: iterate groups in declared order,
// evaluate guards, execute each task against the shared context, and adopt
// the first sub-result whose status lands in the effective halt set. The
// default halt set stops on failed and continues past skipped: skips are
// bypass signals, not blockers.
func (w *Workflow) run(ctx context.Context, ex *Execution) error {
	for _, g := range w.groups {
		if g.If != nil && !g.If(ex) {
			continue
		}
		if g.Unless != nil && g.Unless(ex) {
			continue
		}

		halt := g.Halt
		if halt == nil {
			halt = w.def.haltOn
		}

		for _, sub := range g.Tasks {
			// Sub-tasks always run through the non-raising entry point: the
			// workflow itself decides whether to escalate via Throw.
			res := sub.Call(ctx, nil)
			if statusIn(res.Status(), halt) {
				return ex.Throw(res)
			}
		}
	}
	return nil
}

func statusIn(s Status, set []Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}
