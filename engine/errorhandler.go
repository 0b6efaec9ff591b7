package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/flowforge/agentcore/agenterrors"
)

// Decision is ErrorHandler's output: what the coordinator should do next
// in response to an ExecutionError.
type Decision struct {
	Action ErrorAction
	Reason string
	State  interface{}
	Value  interface{}
}

// ErrorHandler is the central policy for translating execution errors
// into retry/stop/restart/fatal, by mediating the user's error callback
// through StateManager and applying backoff before a retry is handed back
// to the coordinator.
type ErrorHandler struct {
	states  *StateManager
	backoff func() backoff.BackOff
}

// NewErrorHandler builds an ErrorHandler. backoffFactory may be nil, in
// which case a fresh exponential backoff (matching cenkalti/backoff/v5's
// defaults) is used for every retry.
func NewErrorHandler(states *StateManager, backoffFactory func() backoff.BackOff) *ErrorHandler {
	if backoffFactory == nil {
		backoffFactory = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}
	return &ErrorHandler{states: states, backoff: backoffFactory}
}

// Handle invokes the user error callback (fault-isolated via
// StateManager) and translates its response into a Decision. If the
// callback itself failed, the decision is always stop with
// {error_callback_failed, cause}.
func (h *ErrorHandler) Handle(ctx context.Context, errClass *ExecutionError, state interface{}) Decision {
	result, err := h.states.Error(ctx, errClass, state)
	if err != nil {
		return Decision{Action: ActionStop, Reason: "error_callback_failed", Value: err}
	}

	newState := result.Adopt(state)
	switch result.Action {
	case ActionRetry:
		return Decision{Action: ActionRetry, State: newState}
	case ActionStop:
		return Decision{Action: ActionStop, Reason: reasonOr(result.Reason, "agent_stopped_execution"), State: newState}
	case ActionRestart:
		return Decision{Action: ActionRestart, Reason: reasonOr(result.Reason, "restart_requested"), State: newState}
	default:
		return Decision{Action: ActionStop, Reason: "unexpected_handle_error_response", Value: result.Value, State: newState}
	}
}

func reasonOr(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}

// WaitBeforeRetry blocks for this handler's backoff policy's next
// interval, or returns immediately with agenterrors.ErrTimeout-wrapping
// context error if ctx is done first. The coordinator calls this between
// receiving an ActionRetry decision and re-dispatching the batch's
// still-pending nodes, so repeated External failures (e.g. a flaky LLM
// endpoint) don't spin the dispatch loop; when no node is pending it
// re-enters waiting_for_plan at once without calling this.
func (h *ErrorHandler) WaitBeforeRetry(ctx context.Context, attempt int) error {
	bo := h.backoff()
	var d time.Duration
	for i := 0; i <= attempt; i++ {
		d = bo.NextBackOff()
		if d == backoff.Stop {
			return fmt.Errorf("errorhandler: backoff exhausted after %d attempts", attempt+1)
		}
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", agenterrors.ErrTimeout, ctx.Err())
	}
}
