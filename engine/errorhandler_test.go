package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedErrorCallbacks struct {
	NoOpCallbacks
	result ErrorResult
	err    error
}

func (s scriptedErrorCallbacks) Error(context.Context, *ExecutionError, interface{}) (ErrorResult, error) {
	return s.result, s.err
}

func TestErrorHandler_RetryDecision(t *testing.T) {
	sm := NewStateManager(scriptedErrorCallbacks{result: ErrorResult{
		CallbackResult: CallbackResult{Status: StatusOK, NewState: "retrying"},
		Action:         ActionRetry,
	}}, nil)
	h := NewErrorHandler(sm, nil)

	d := h.Handle(context.Background(), &ExecutionError{Cause: errors.New("boom")}, "prior")
	assert.Equal(t, ActionRetry, d.Action)
	assert.Equal(t, "retrying", d.State)
}

func TestErrorHandler_StopDecisionDefaultsReason(t *testing.T) {
	sm := NewStateManager(scriptedErrorCallbacks{result: ErrorResult{Action: ActionStop}}, nil)
	h := NewErrorHandler(sm, nil)

	d := h.Handle(context.Background(), &ExecutionError{Cause: errors.New("boom")}, nil)
	assert.Equal(t, ActionStop, d.Action)
	assert.Equal(t, "agent_stopped_execution", d.Reason)
}

func TestErrorHandler_RestartDecisionPreservesExplicitReason(t *testing.T) {
	sm := NewStateManager(scriptedErrorCallbacks{result: ErrorResult{Action: ActionRestart, Reason: "cache_poisoned"}}, nil)
	h := NewErrorHandler(sm, nil)

	d := h.Handle(context.Background(), &ExecutionError{Cause: errors.New("boom")}, nil)
	assert.Equal(t, ActionRestart, d.Action)
	assert.Equal(t, "cache_poisoned", d.Reason)
}

func TestErrorHandler_CallbackFailureStopsWithReason(t *testing.T) {
	sm := NewStateManager(scriptedErrorCallbacks{err: errors.New("callback blew up")}, nil)
	h := NewErrorHandler(sm, nil)

	d := h.Handle(context.Background(), &ExecutionError{Cause: errors.New("boom")}, nil)
	assert.Equal(t, ActionStop, d.Action)
	assert.Equal(t, "error_callback_failed", d.Reason)
	require.Error(t, d.Value.(error))
}

type oneShotBackoff struct{ d time.Duration }

func (b *oneShotBackoff) NextBackOff() time.Duration { return b.d }
func (b *oneShotBackoff) Reset()                     {}

func TestErrorHandler_WaitBeforeRetryHonorsBackoff(t *testing.T) {
	sm := NewStateManager(NoOpCallbacks{}, nil)
	h := NewErrorHandler(sm, func() backoff.BackOff { return &oneShotBackoff{d: time.Millisecond} })

	start := time.Now()
	err := h.WaitBeforeRetry(context.Background(), 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), time.Millisecond)
}

func TestErrorHandler_WaitBeforeRetryRespectsContextCancellation(t *testing.T) {
	sm := NewStateManager(NoOpCallbacks{}, nil)
	h := NewErrorHandler(sm, func() backoff.BackOff { return &oneShotBackoff{d: time.Hour} })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.WaitBeforeRetry(ctx, 0)
	require.Error(t, err)
}
