// Package tool defines the capability a stage's LLM loop can invoke:
// Tool.Run(args, context) -> (ok, value) | (error, reason), plus the
// structured error/response envelope tools use to report failures in a
// way the coordinator and the LLM can both reason about.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// Declaration describes a tool to an LLMClient: its name, a natural
// language description, and a JSON schema for its arguments. Stages
// reference tools by name (spec.ToolRef); Declaration is what gets
// handed to the model so it knows the tool exists and how to call it.
type Declaration struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	ParametersSchema json.RawMessage `json:"parameters_schema,omitempty"`
}

// Tool is one invocable capability available to a stage's LLM loop.
type Tool interface {
	// Info returns this tool's declaration, used to advertise it to the
	// LLMClient alongside the stage's prompt.
	Info() Declaration

	// Run executes the tool against args (the LLM's FunctionCall
	// arguments). A non-nil error is always wrapped by the caller into a
	// FunctionResult error message — Run itself never needs to know
	// about messages or history.
	Run(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}

// ErrorCategory classifies a tool failure for the coordinator's
// ErrorHandler and for any LLM-facing retry hint.
type ErrorCategory string

const (
	CategoryInputError   ErrorCategory = "INPUT_ERROR"
	CategoryNotFound     ErrorCategory = "NOT_FOUND"
	CategoryRateLimit    ErrorCategory = "RATE_LIMIT"
	CategoryAuthError    ErrorCategory = "AUTH_ERROR"
	CategoryServiceError ErrorCategory = "SERVICE_ERROR"
)

// Error is a structured error a Tool.Run can return so callers get more
// than a string: a machine-readable code, a retry hint, and free-form
// details for diagnostics. Tools may also return a plain error; the
// stage worker treats both uniformly (see engine package), converting
// either into a FunctionResult error message.
type Error struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Category  ErrorCategory     `json:"category"`
	Retryable bool              `json:"retryable"`
	Details   map[string]string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Response is the standard envelope a Tool may choose to return as its
// result payload instead of a bare value, mirroring the ok/error
// variant a Tool.Run result can take.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}
