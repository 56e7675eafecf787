package task

import (
	"errors"
	"fmt"
)

// Fault is the control-flow signal that unwinds execution when a result is
// skipped or failed and the halt policy says to propagate. It is an
// ordinary error value, never a panic: business logic returns it, the
// nearest executor or workflow frame inspects it. A Fault always wraps
// exactly one non-success Result and never represents a bug.
type Fault struct {
	result *Result
}

// NewFault builds the fault for a non-success result. It returns nil when
// the status is still success.
func NewFault(r *Result) *Fault {
	if r == nil || r.IsSuccess() {
		return nil
	}
	return &Fault{result: r}
}

// Result returns the wrapped result.
func (f *Fault) Result() *Result { return f.result }

// Skipped reports whether the wrapped result was skipped.
func (f *Fault) Skipped() bool { return f.result.IsSkipped() }

// Failed reports whether the wrapped result was failed.
func (f *Fault) Failed() bool { return f.result.IsFailed() }

func (f *Fault) Error() string {
	key := MsgFailedFault
	if f.Skipped() {
		key = MsgSkippedFault
	}
	msg := translate(f.result.translator(), key)
	if reason := f.result.Reason(); reason != "" {
		return fmt.Sprintf("%s: %s", msg, reason)
	}
	return msg
}

// Unwrap exposes the underlying cause so errors.Is/As reach the original
// error recorded by Fail.
func (f *Fault) Unwrap() error {
	return f.result.Cause()
}

// MatchesHalt reports whether the wrapped status is in the halt set.
func (f *Fault) MatchesHalt(halt []Status) bool {
	for _, s := range halt {
		if f.result.Status() == s {
			return true
		}
	}
	return false
}

// AsFault unwraps err into a *Fault when one is present.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
