// Package engine implements the callback_module contract: the full set of
// lifecycle extension points a caller can implement to observe and steer
// execution. StateManager mediates every call through it, normalizing
// responses and isolating faults so a panicking callback cannot take down
// the coordinator.
package engine

import (
	"context"

	"github.com/flowforge/agentcore/dag"
)

// Status is the normalized outcome of a single callback invocation.
type Status string

const (
	StatusOK         Status = "ok"
	StatusOKOverride Status = "ok_override"
	StatusOther      Status = "other"
)

// CallbackResult is the common (status, new_state) shape used for every
// callback except plan and error, which carry additional per-callback
// payload (see PlanResult, ErrorResult below).
type CallbackResult struct {
	Status   Status
	NewState interface{}
	Override interface{} // consulted only when Status == StatusOKOverride
}

// Adopt resolves the next agent-state value to use given prior state and
// this result: ok adopts NewState, ok_override adopts the embedded override,
// anything else retains prior.
func (r CallbackResult) Adopt(prior interface{}) interface{} {
	switch r.Status {
	case StatusOK:
		return r.NewState
	case StatusOKOverride:
		return r.Override
	default:
		return prior
	}
}

// PlanResult is plan's response: the normal (status, new_state) plus the
// filtered list of nodes the callback chose to actually execute this
// round. When Status is ok, the coordinator adopts PlannedNodes as the
// effective ready set; otherwise it falls back to the original ready
// list.
type PlanResult struct {
	CallbackResult
	PlannedNodes []string
}

// ErrorAction is the coordinator-facing decision an error callback
// makes.
type ErrorAction string

const (
	ActionRetry   ErrorAction = "retry"
	ActionStop    ErrorAction = "stop"
	ActionRestart ErrorAction = "restart"
	ActionOther   ErrorAction = "other"
)

// ErrorResult is the error callback's response.
type ErrorResult struct {
	CallbackResult
	Action ErrorAction
	Reason string
	Value  interface{} // populated when Action == ActionOther, for {unexpected_handle_error_response, value}
}

// ExecutionError is the error_class payload handed to the error
// callback: the failing stage (empty for planning-phase errors) and the
// underlying cause.
type ExecutionError struct {
	Stage string
	Cause error
}

func (e *ExecutionError) Error() string {
	if e.Stage != "" {
		return "stage " + e.Stage + ": " + e.Cause.Error()
	}
	return e.Cause.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// ToolOutcome is what the worker-side tool_result callback observes:
// either a successful value or an error description.
type ToolOutcome struct {
	Value interface{}
	Err   string
}

// AgentCallbacks is the full lifecycle contract a callback_module
// implements. Every method may mutate state by returning a new snapshot;
// StateManager decides whether that mutation is adopted.
type AgentCallbacks interface {
	Init(ctx context.Context, d *dag.DAG, state interface{}) (CallbackResult, error)
	Plan(ctx context.Context, readyNodes []string, state interface{}) (PlanResult, error)
	BatchStart(ctx context.Context, nodes []string, state interface{}) (CallbackResult, error)
	StageStart(ctx context.Context, stageName string, state interface{}) (CallbackResult, error)
	StageFinish(ctx context.Context, stageName string, result interface{}, state interface{}) (CallbackResult, error)
	Progress(ctx context.Context, info ProgressInfo, state interface{}) (CallbackResult, error)
	BatchComplete(ctx context.Context, batchResults map[string]interface{}, pending []string, state interface{}) (CallbackResult, error)
	Complete(ctx context.Context, finalResults map[string]interface{}, state interface{}) (CallbackResult, error)
	ToolCall(ctx context.Context, name string, args interface{}, state interface{}) (CallbackResult, error)
	ToolResult(ctx context.Context, name string, outcome ToolOutcome, state interface{}) (CallbackResult, error)
	Error(ctx context.Context, errClass *ExecutionError, state interface{}) (ErrorResult, error)
}

// NoOpCallbacks adopts no state changes and accepts the default ready
// set on every plan; useful as a default callback_module and as a base
// to embed when a caller only wants to override a handful of hooks.
type NoOpCallbacks struct{}

func (NoOpCallbacks) Init(context.Context, *dag.DAG, interface{}) (CallbackResult, error) {
	return CallbackResult{Status: StatusOther}, nil
}
func (NoOpCallbacks) Plan(_ context.Context, ready []string, _ interface{}) (PlanResult, error) {
	return PlanResult{CallbackResult: CallbackResult{Status: StatusOther}, PlannedNodes: ready}, nil
}
func (NoOpCallbacks) BatchStart(context.Context, []string, interface{}) (CallbackResult, error) {
	return CallbackResult{Status: StatusOther}, nil
}
func (NoOpCallbacks) StageStart(context.Context, string, interface{}) (CallbackResult, error) {
	return CallbackResult{Status: StatusOther}, nil
}
func (NoOpCallbacks) StageFinish(context.Context, string, interface{}, interface{}) (CallbackResult, error) {
	return CallbackResult{Status: StatusOther}, nil
}
func (NoOpCallbacks) Progress(context.Context, ProgressInfo, interface{}) (CallbackResult, error) {
	return CallbackResult{Status: StatusOther}, nil
}
func (NoOpCallbacks) BatchComplete(context.Context, map[string]interface{}, []string, interface{}) (CallbackResult, error) {
	return CallbackResult{Status: StatusOther}, nil
}
func (NoOpCallbacks) Complete(context.Context, map[string]interface{}, interface{}) (CallbackResult, error) {
	return CallbackResult{Status: StatusOther}, nil
}
func (NoOpCallbacks) ToolCall(context.Context, string, interface{}, interface{}) (CallbackResult, error) {
	return CallbackResult{Status: StatusOther}, nil
}
func (NoOpCallbacks) ToolResult(context.Context, string, ToolOutcome, interface{}) (CallbackResult, error) {
	return CallbackResult{Status: StatusOther}, nil
}
func (NoOpCallbacks) Error(_ context.Context, errClass *ExecutionError, _ interface{}) (ErrorResult, error) {
	return ErrorResult{CallbackResult: CallbackResult{Status: StatusOther}, Action: ActionStop, Reason: errClass.Error()}, nil
}

var _ AgentCallbacks = NoOpCallbacks{}
