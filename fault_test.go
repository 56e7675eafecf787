package task

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFaultOnSuccessIsNil(t *testing.T) {
	res := newTestResult(t, "fine")

	assert.Nil(t, NewFault(res))
	assert.Nil(t, NewFault(nil))
}

func TestFaultMessageIncludesReason(t *testing.T) {
	res := newTestResult(t, "broken")
	require.NoError(t, res.Fail("disk full", WithoutHalt()))

	f := NewFault(res)
	require.NotNil(t, f)
	assert.True(t, f.Failed())
	assert.Equal(t, "task failed: disk full", f.Error())
}

func TestFaultMessageForSkip(t *testing.T) {
	res := newTestResult(t, "bypassed")
	require.NoError(t, res.Skip("already processed", WithoutHalt()))

	f := NewFault(res)
	require.NotNil(t, f)
	assert.True(t, f.Skipped())
	assert.Equal(t, "task skipped: already processed", f.Error())
}

func TestFaultUnwrapsCause(t *testing.T) {
	res := newTestResult(t, "caused")
	boom := fmt.Errorf("downstream exploded")
	require.NoError(t, res.Fail("dependency failure", WithCause(boom), WithoutHalt()))

	f := NewFault(res)
	require.ErrorIs(t, f, boom)
}

func TestFaultMatchesHalt(t *testing.T) {
	res := newTestResult(t, "skipped-halt")
	require.NoError(t, res.Skip("later", WithoutHalt()))

	f := NewFault(res)
	assert.False(t, f.MatchesHalt([]Status{StatusFailed}))
	assert.True(t, f.MatchesHalt([]Status{StatusFailed, StatusSkipped}))
	assert.False(t, f.MatchesHalt(nil))
}

func TestAsFaultOnPlainError(t *testing.T) {
	_, ok := AsFault(fmt.Errorf("just an error"))
	assert.False(t, ok)

	_, ok = AsFault(nil)
	assert.False(t, ok)
}

func TestCustomTranslatorShapesMessages(t *testing.T) {
	tr := MapTranslator{
		MsgNoReason:    "sin motivo",
		MsgFailedFault: "tarea fallida",
	}

	def, err := New("localized", TaskFunc(func(_ context.Context, ex *Execution) error {
		return ex.Fail("")
	}), WithTranslator(tr), quietLogger())
	require.NoError(t, err)

	res, callErr := def.CallStrict(context.Background(), nil)

	assert.Equal(t, "sin motivo", res.Reason())
	require.Error(t, callErr)
	assert.Equal(t, "tarea fallida: sin motivo", callErr.Error())
}

func TestMapTranslatorFallsBackToKey(t *testing.T) {
	tr := MapTranslator{}
	assert.Equal(t, "task.no_reason", tr.Translate(MsgNoReason, nil))
}
