package engine

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/flowforge/agentcore/agentlog"
	"github.com/flowforge/agentcore/dag"
)

// StateManager mediates every call into a callback_module's
// AgentCallbacks, wrapping each in fault isolation: a callback that
// panics yields a Framework-kind error instead of crashing the
// coordinator goroutine, the same way gomind's
// SmartExecutor.safeInvokeStepCallback recovers a panicking user callback
// and logs it rather than letting it propagate.
type StateManager struct {
	callbacks AgentCallbacks
	logger    agentlog.Logger
}

// NewStateManager builds a StateManager around a concrete callback_module
// implementation.
func NewStateManager(callbacks AgentCallbacks, logger agentlog.Logger) *StateManager {
	if callbacks == nil {
		callbacks = NoOpCallbacks{}
	}
	if logger == nil {
		logger = agentlog.NoOpLogger{}
	}
	return &StateManager{callbacks: callbacks, logger: logger}
}

func (sm *StateManager) recoverInto(op string, err *error) {
	if r := recover(); r != nil {
		sm.logger.Error("callback panicked", map[string]interface{}{
			"operation": op,
			"panic":     fmt.Sprintf("%v", r),
			"stack":     string(debug.Stack()),
		})
		*err = fmt.Errorf("%s: callback panicked: %v", op, r)
	}
}

func (sm *StateManager) Init(ctx context.Context, d *dag.DAG, state interface{}) (result CallbackResult, err error) {
	defer sm.recoverInto("init", &err)
	result, err = sm.callbacks.Init(ctx, d, state)
	return
}

func (sm *StateManager) Plan(ctx context.Context, readyNodes []string, state interface{}) (result PlanResult, err error) {
	defer sm.recoverInto("plan", &err)
	result, err = sm.callbacks.Plan(ctx, readyNodes, state)
	return
}

func (sm *StateManager) BatchStart(ctx context.Context, nodes []string, state interface{}) (result CallbackResult, err error) {
	defer sm.recoverInto("batch_start", &err)
	result, err = sm.callbacks.BatchStart(ctx, nodes, state)
	return
}

func (sm *StateManager) StageStart(ctx context.Context, stageName string, state interface{}) (result CallbackResult, err error) {
	defer sm.recoverInto("stage_start", &err)
	result, err = sm.callbacks.StageStart(ctx, stageName, state)
	return
}

func (sm *StateManager) StageFinish(ctx context.Context, stageName string, stageResult interface{}, state interface{}) (result CallbackResult, err error) {
	defer sm.recoverInto("stage_finish", &err)
	result, err = sm.callbacks.StageFinish(ctx, stageName, stageResult, state)
	return
}

func (sm *StateManager) Progress(ctx context.Context, info ProgressInfo, state interface{}) (result CallbackResult, err error) {
	defer sm.recoverInto("progress", &err)
	result, err = sm.callbacks.Progress(ctx, info, state)
	return
}

func (sm *StateManager) BatchComplete(ctx context.Context, batchResults map[string]interface{}, pending []string, state interface{}) (result CallbackResult, err error) {
	defer sm.recoverInto("batch_complete", &err)
	result, err = sm.callbacks.BatchComplete(ctx, batchResults, pending, state)
	return
}

func (sm *StateManager) Complete(ctx context.Context, finalResults map[string]interface{}, state interface{}) (result CallbackResult, err error) {
	defer sm.recoverInto("complete", &err)
	result, err = sm.callbacks.Complete(ctx, finalResults, state)
	return
}

func (sm *StateManager) ToolCall(ctx context.Context, name string, args interface{}, state interface{}) (result CallbackResult, err error) {
	defer sm.recoverInto("tool_call", &err)
	result, err = sm.callbacks.ToolCall(ctx, name, args, state)
	return
}

func (sm *StateManager) ToolResult(ctx context.Context, name string, outcome ToolOutcome, state interface{}) (result CallbackResult, err error) {
	defer sm.recoverInto("tool_result", &err)
	result, err = sm.callbacks.ToolResult(ctx, name, outcome, state)
	return
}

func (sm *StateManager) Error(ctx context.Context, errClass *ExecutionError, state interface{}) (result ErrorResult, err error) {
	defer sm.recoverInto("error", &err)
	result, err = sm.callbacks.Error(ctx, errClass, state)
	return
}
