package task

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() Option {
	return WithLogger(NewFmtLogger(io.Discard))
}

func TestCallSuccessScenario(t *testing.T) {
	def, err := New("greet", TaskFunc(func(ctx context.Context, ex *Execution) error {
		return ex.Context().Set("greeting", fmt.Sprintf("hello %v", ex.Context().Get("name")))
	}), quietLogger())
	require.NoError(t, err)

	res := def.Call(context.Background(), map[string]any{"name": "ada"})

	assert.Equal(t, StateComplete, res.State())
	assert.Equal(t, StatusSuccess, res.Status())
	assert.Equal(t, "success", res.Outcome())
	assert.True(t, res.Frozen())
	assert.Equal(t, "hello ada", res.Execution().Context().Get("greeting"))
}

func TestCallFreezesOutermostContextAndChain(t *testing.T) {
	def, err := New("sealer", TaskFunc(func(ctx context.Context, ex *Execution) error {
		return nil
	}), quietLogger())
	require.NoError(t, err)

	res := def.Call(context.Background(), nil)

	assert.True(t, res.Execution().Context().Frozen())
	assert.True(t, res.Chain().Frozen())
	require.Error(t, res.Execution().Context().Set("late", true))
}

func TestCallStartsFreshChainPerInvocation(t *testing.T) {
	def, err := New("repeat", TaskFunc(func(context.Context, *Execution) error { return nil }), quietLogger())
	require.NoError(t, err)

	ctx := context.Background()
	first := def.Call(ctx, nil)
	second := def.Call(ctx, nil)

	assert.NotEqual(t, first.Chain().ID(), second.Chain().ID())
	assert.Equal(t, 1, second.Chain().Len())
}

func TestCallExplicitSkip(t *testing.T) {
	def, err := New("importer", TaskFunc(func(ctx context.Context, ex *Execution) error {
		return ex.Skip("not needed", WithMetadata(map[string]any{"rows": 0}))
	}), quietLogger())
	require.NoError(t, err)

	res := def.Call(context.Background(), nil)

	assert.Equal(t, StatusSkipped, res.Status())
	assert.Equal(t, StateInterrupted, res.State())
	assert.Equal(t, "not needed", res.Reason())

	meta := res.Metadata()
	assert.Equal(t, "not needed", meta["reason"])
	assert.Equal(t, 0, meta["rows"])
}

func TestCallStrictDoesNotRaiseOnSkipByDefault(t *testing.T) {
	def, err := New("optional", TaskFunc(func(ctx context.Context, ex *Execution) error {
		return ex.Skip("nothing to do")
	}), quietLogger())
	require.NoError(t, err)

	res, err := def.CallStrict(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status())
}

func TestCallStrictRaisesOnFailure(t *testing.T) {
	def, err := New("charger", TaskFunc(func(ctx context.Context, ex *Execution) error {
		return ex.Fail("card declined", WithMetadata(map[string]any{"code": 402}))
	}), quietLogger())
	require.NoError(t, err)

	res, err := def.CallStrict(context.Background(), nil)

	require.Error(t, err)
	fault, ok := AsFault(err)
	require.True(t, ok)
	assert.True(t, fault.Failed())
	assert.Same(t, res, fault.Result())
	assert.Equal(t, "card declined", res.Reason())
}

func TestCallStrictHaltSetOverride(t *testing.T) {
	def, err := New("strict-skipper", TaskFunc(func(ctx context.Context, ex *Execution) error {
		return ex.Skip("short on stock")
	}), WithHaltOn(StatusFailed, StatusSkipped), quietLogger())
	require.NoError(t, err)

	_, err = def.CallStrict(context.Background(), nil)

	require.Error(t, err)
	fault, ok := AsFault(err)
	require.True(t, ok)
	assert.True(t, fault.Skipped())
}

func TestValidationFailureShortCircuitsBusinessLogic(t *testing.T) {
	var businessRan bool
	def, err := New("validator", TaskFunc(func(context.Context, *Execution) error {
		businessRan = true
		return nil
	}),
		WithParams(
			Param{Name: "amount", Required: true, Rules: []validation.Rule{validation.Min(1)}},
		),
		quietLogger(),
	)
	require.NoError(t, err)

	res := def.Call(context.Background(), nil)

	assert.False(t, businessRan)
	assert.Equal(t, StatusFailed, res.Status())
	// validation failed during pre-execution, so the state never reached
	// executing and goes straight to interrupted
	assert.Equal(t, StateInterrupted, res.State())
	require.ErrorIs(t, res.Cause(), ErrValidation)

	meta := res.Metadata()
	errsMeta, ok := meta["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errsMeta, "amount")
}

func TestUnexpectedErrorBecomesFailedResult(t *testing.T) {
	boom := stderrors.New("connection reset")
	def, err := New("flaky", TaskFunc(func(context.Context, *Execution) error {
		return boom
	}), quietLogger())
	require.NoError(t, err)

	res := def.Call(context.Background(), nil)

	assert.Equal(t, StatusFailed, res.Status())
	assert.Contains(t, res.Reason(), "connection reset")
	assert.Contains(t, res.Reason(), "[")
	require.ErrorIs(t, res.Cause(), boom)
}

func TestPanicInBusinessLogicDegradesToFailure(t *testing.T) {
	def, err := New("panicky", TaskFunc(func(context.Context, *Execution) error {
		panic("unreachable branch reached")
	}), quietLogger())
	require.NoError(t, err)

	res := def.Call(context.Background(), nil)

	assert.Equal(t, StatusFailed, res.Status())
	assert.Contains(t, res.Reason(), "panic recovered")

	var ge *goerrors.Error
	require.ErrorAs(t, res.Cause(), &ge)
	assert.Equal(t, "TASK_PANIC", ge.TextCode)
	assert.NotEmpty(t, ge.Metadata["stack"])
}

func TestMissingBusinessLogicPanics(t *testing.T) {
	def, err := New("hollow", nil, quietLogger())
	require.NoError(t, err)

	defer func() {
		rec := recover()
		require.NotNil(t, rec)
		recErr, ok := rec.(error)
		require.True(t, ok)
		require.ErrorIs(t, recErr, ErrNotImplemented)
	}()

	def.Call(context.Background(), nil)
}

func TestRetryReRunsBusinessLogicOnly(t *testing.T) {
	var attempts, validations int

	def, err := New("retrier", TaskFunc(func(context.Context, *Execution) error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("transient glitch %d", attempts)
		}
		return nil
	}),
		WithVerifier(VerifierFunc(func(*Execution) Errors {
			validations++
			return Errors{}
		})),
		WithRetry(&RetryPolicy{MaxRetries: 3, Strategy: NoDelayStrategy{}}),
		quietLogger(),
	)
	require.NoError(t, err)

	res := def.Call(context.Background(), nil)

	assert.Equal(t, StatusSuccess, res.Status())
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 1, validations)

	retries, ok := res.Meta("retries")
	require.True(t, ok)
	assert.Equal(t, 2, retries)
}

func TestRetryAllowListExcludesNonMatching(t *testing.T) {
	permanent := stderrors.New("permanent failure")
	var attempts int

	def, err := New("selective-retrier", TaskFunc(func(context.Context, *Execution) error {
		attempts++
		return permanent
	}),
		WithRetry(&RetryPolicy{
			MaxRetries: 5,
			Matches:    func(err error) bool { return !stderrors.Is(err, permanent) },
		}),
		quietLogger(),
	)
	require.NoError(t, err)

	res := def.Call(context.Background(), nil)

	assert.Equal(t, 1, attempts)
	assert.Equal(t, StatusFailed, res.Status())
}

func TestNestedFaultIsAdopted(t *testing.T) {
	sub, err := New("inventory-check", TaskFunc(func(ctx context.Context, ex *Execution) error {
		return ex.Fail("out of stock")
	}), quietLogger())
	require.NoError(t, err)

	parent, err := New("place-order", TaskFunc(func(ctx context.Context, ex *Execution) error {
		_, err := sub.CallStrict(ctx, nil)
		return err
	}), quietLogger())
	require.NoError(t, err)

	res := parent.Call(context.Background(), nil)

	require.Equal(t, StatusFailed, res.Status())
	assert.Equal(t, "out of stock", res.Reason())

	chain := res.Chain()
	require.Equal(t, 2, chain.Len())

	subRes := chain.Results()[1]
	assert.Same(t, subRes, subRes.CausedFailure())
	assert.True(t, subRes.IsCausedFailure())
	assert.Same(t, res, subRes.ThrewFailure())

	assert.Same(t, subRes, res.CausedFailure())
	assert.True(t, res.IsThrownFailure())
	assert.Same(t, res, res.ThrewFailure())
	// a propagated failure surfaces the interrupted state
	assert.Equal(t, "interrupted", res.Outcome())
}

func TestNestedCallsShareContextBag(t *testing.T) {
	sub, err := New("enricher", TaskFunc(func(ctx context.Context, ex *Execution) error {
		return ex.Context().Set("enriched", true)
	}), quietLogger())
	require.NoError(t, err)

	parent, err := New("pipeline", TaskFunc(func(ctx context.Context, ex *Execution) error {
		sub.Call(ctx, nil)
		return nil
	}), quietLogger())
	require.NoError(t, err)

	res := parent.Call(context.Background(), map[string]any{"seed": 1})

	bag := res.Execution().Context()
	assert.Equal(t, true, bag.Get("enriched"))
	assert.Equal(t, 1, bag.Get("seed"))
}

func TestLifecycleCallbackOrder(t *testing.T) {
	var events []Event
	record := func(_ context.Context, _ *Execution, ev Event) error {
		events = append(events, ev)
		return nil
	}

	opts := []Option{quietLogger()}
	for _, ev := range []Event{
		EventBeforeValidation, EventAfterValidation,
		EventBeforeExecution, EventAfterExecution,
		EventOnExecuted, EventOnComplete, EventOnSuccess, EventOnGood,
	} {
		opts = append(opts, WithCallback(ev, record))
	}

	def, err := New("observed", TaskFunc(func(context.Context, *Execution) error { return nil }), opts...)
	require.NoError(t, err)

	def.Call(context.Background(), nil)

	assert.Equal(t, []Event{
		EventBeforeValidation,
		EventAfterValidation,
		EventBeforeExecution,
		EventOnComplete,
		EventOnExecuted,
		EventOnSuccess,
		EventOnGood,
		EventAfterExecution,
	}, events)
}

func TestFailureCallbacksFire(t *testing.T) {
	var events []Event
	record := func(_ context.Context, _ *Execution, ev Event) error {
		events = append(events, ev)
		return nil
	}

	def, err := New("doomed", TaskFunc(func(ctx context.Context, ex *Execution) error {
		return ex.Fail("nope")
	}),
		WithCallback(EventOnInterrupted, record),
		WithCallback(EventOnFailed, record),
		WithCallback(EventOnBad, record),
		WithCallback(EventOnGood, record),
		quietLogger(),
	)
	require.NoError(t, err)

	def.Call(context.Background(), nil)

	assert.Equal(t, []Event{EventOnInterrupted, EventOnFailed, EventOnBad}, events)
}

func TestSkippedStatusIsGoodAndBad(t *testing.T) {
	var events []Event
	record := func(_ context.Context, _ *Execution, ev Event) error {
		events = append(events, ev)
		return nil
	}

	def, err := New("bypass", TaskFunc(func(ctx context.Context, ex *Execution) error {
		return ex.Skip("bypass")
	}),
		WithCallback(EventOnGood, record),
		WithCallback(EventOnBad, record),
		quietLogger(),
	)
	require.NoError(t, err)

	def.Call(context.Background(), nil)

	// skipped is both good (not failed) and bad (not success)
	assert.Equal(t, []Event{EventOnGood, EventOnBad}, events)
}

func TestFailClosedCallbackFailsResult(t *testing.T) {
	var businessRan bool
	def, err := New("strict-hooks", TaskFunc(func(context.Context, *Execution) error {
		businessRan = true
		return nil
	}),
		WithHookFailureMode(HookFailClosed),
		WithCallback(EventBeforeValidation, func(context.Context, *Execution, Event) error {
			return fmt.Errorf("audit sink unavailable")
		}),
		quietLogger(),
	)
	require.NoError(t, err)

	res := def.Call(context.Background(), nil)

	assert.False(t, businessRan)
	assert.Equal(t, StatusFailed, res.Status())
	assert.Contains(t, res.Reason(), "audit sink unavailable")
}

func TestMiddlewareWrapsExecutionThroughExecutor(t *testing.T) {
	var trace []string

	def, err := New("decorated", TaskFunc(func(context.Context, *Execution) error {
		trace = append(trace, "handler")
		return nil
	}),
		WithMiddleware(MiddlewareFunc(func(ctx context.Context, _ *Execution, next Next) error {
			trace = append(trace, "before")
			err := next(ctx)
			trace = append(trace, "after")
			return err
		})),
		quietLogger(),
	)
	require.NoError(t, err)

	res := def.Call(context.Background(), nil)

	assert.Equal(t, []string{"before", "handler", "after"}, trace)
	assert.Equal(t, StatusSuccess, res.Status())
}

func TestMiddlewareShortCircuitLeavesResultInitialized(t *testing.T) {
	var events []Event
	def, err := New("gated", TaskFunc(func(context.Context, *Execution) error {
		t.Fatal("business logic must not run")
		return nil
	}),
		WithMiddleware(MiddlewareFunc(func(context.Context, *Execution, Next) error {
			return nil
		})),
		WithCallback(EventOnInitialized, func(_ context.Context, _ *Execution, ev Event) error {
			events = append(events, ev)
			return nil
		}),
		WithCallback(EventOnExecuted, func(_ context.Context, _ *Execution, ev Event) error {
			events = append(events, ev)
			return nil
		}),
		quietLogger(),
	)
	require.NoError(t, err)

	res := def.Call(context.Background(), nil)

	// Executing fires inside the innermost continuation, so a middleware
	// that declines to call through leaves the result untouched.
	assert.Equal(t, StateInitialized, res.State())
	assert.Equal(t, StatusSuccess, res.Status())
	assert.Equal(t, "initialized", res.Outcome())
	assert.Equal(t, []Event{EventOnInitialized}, events)
}

func TestMiddlewareCanFailTheResult(t *testing.T) {
	def, err := New("vetoed", TaskFunc(func(context.Context, *Execution) error {
		t.Fatal("business logic must not run")
		return nil
	}),
		WithMiddleware(MiddlewareFunc(func(_ context.Context, ex *Execution, _ Next) error {
			return ex.Fail("quota exhausted")
		})),
		quietLogger(),
	)
	require.NoError(t, err)

	res := def.Call(context.Background(), nil)

	assert.Equal(t, StatusFailed, res.Status())
	assert.Equal(t, "quota exhausted", res.Reason())
	assert.Equal(t, StateInterrupted, res.State())
}
