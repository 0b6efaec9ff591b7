package llm

import (
	"context"
	"errors"

	"github.com/flowforge/agentcore/spec"
	"github.com/flowforge/agentcore/tool"
)

// MockClient is a scripted Client for deterministic StageWorker tests: it
// replays a queue of pre-recorded Responses in order and records every
// call it received, the way gomind's mock AI provider does for its
// GenerateResponse.
type MockClient struct {
	Responses     []Response
	ResponseIndex int
	Err           error

	CallCount   int
	LastModel   string
	LastMessages []spec.Message
	LastTools   []tool.Declaration
	LastParams  spec.LLMParams
}

// NewMockClient creates a MockClient with no scripted responses; callers
// populate Responses (or Err) before use.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// SetTextResponses is a convenience for scripting a sequence of plain
// assistant text replies, one per tool round.
func (c *MockClient) SetTextResponses(texts ...string) {
	c.Responses = make([]Response, len(texts))
	for i, t := range texts {
		c.Responses[i] = Response{Message: spec.Message{Role: "assistant", Parts: []spec.MessagePart{spec.TextPart{Text: t}}}}
	}
	c.ResponseIndex = 0
}

// Completion implements Client by returning the next scripted Response.
func (c *MockClient) Completion(ctx context.Context, model string, messages []spec.Message, tools []tool.Declaration, params spec.LLMParams) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	c.CallCount++
	c.LastModel = model
	c.LastMessages = messages
	c.LastTools = tools
	c.LastParams = params

	if c.Err != nil {
		return Response{}, c.Err
	}
	if c.ResponseIndex >= len(c.Responses) {
		return Response{}, errors.New("mock llm client: no more scripted responses")
	}
	resp := c.Responses[c.ResponseIndex]
	c.ResponseIndex++
	return resp, nil
}

var _ Client = (*MockClient)(nil)
