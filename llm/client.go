// Package llm defines the LLMClient capability a StageWorker invokes to
// drive its tool-calling loop, plus a scripted mock implementation that
// StageWorker tests dispatch against instead of a live provider.
package llm

import (
	"context"

	"github.com/flowforge/agentcore/spec"
	"github.com/flowforge/agentcore/tool"
)

// Client is the capability a stage's LLM interaction dispatches through.
// Completion returns one response per call; the caller (StageWorker)
// drives the multi-round tool loop by re-invoking Completion with an
// updated message history.
type Client interface {
	Completion(ctx context.Context, model string, messages []spec.Message, tools []tool.Declaration, params spec.LLMParams) (Response, error)
}

// Response is the LLMClient's reply for one round: a single assistant
// message whose Parts determine what the StageWorker does next — a
// FunctionCallPart drives another tool round, anything else ends the
// loop and becomes the stage's result.
type Response struct {
	Message spec.Message
	Usage   TokenUsage
}

// TokenUsage mirrors the accounting gomind's AI clients report alongside
// a completion, carried here purely for observability — the engine
// package never branches on it.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// FunctionCall extracts the first FunctionCallPart from a Response, if
// any. A Response with none is a terminal answer for the current round.
func (r Response) FunctionCall() (spec.FunctionCallPart, bool) {
	for _, p := range r.Message.Parts {
		if fc, ok := p.(spec.FunctionCallPart); ok {
			return fc, true
		}
	}
	return spec.FunctionCallPart{}, false
}
