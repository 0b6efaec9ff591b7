package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/agentcore/llm"
	"github.com/flowforge/agentcore/spec"
	"github.com/flowforge/agentcore/tool"
)

type stubTool struct {
	out json.RawMessage
	err error
}

func (s stubTool) Info() tool.Declaration { return tool.Declaration{Name: "echo"} }
func (s stubTool) Run(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	return s.out, s.err
}

func functionCallResponse(id, name string, args string) llm.Response {
	return llm.Response{Message: spec.Message{Role: "assistant", Parts: []spec.MessagePart{
		spec.FunctionCallPart{ID: id, Name: name, Args: json.RawMessage(args)},
	}}}
}

func textResponse(text string) llm.Response {
	return llm.Response{Message: spec.Message{Role: "assistant", Parts: []spec.MessagePart{spec.TextPart{Text: text}}}}
}

func TestStageWorker_NoLLMReturnsImmediately(t *testing.T) {
	w := NewStageWorker("noop", nil, nil, NewStateManager(nil, nil), nil, 5)
	res := w.Execute(context.Background(), "noop", spec.Stage{Name: "noop"}, nil)
	assert.NoError(t, res.Err)
	assert.Nil(t, res.Result)
}

func TestStageWorker_DirectTextAnswerEndsLoop(t *testing.T) {
	client := llm.NewMockClient()
	client.SetTextResponses("hello there")

	w := NewStageWorker("greet", client, nil, NewStateManager(nil, nil), nil, 5)
	st := spec.Stage{Name: "greet", LLM: &spec.LLMConfig{Model: "m"}}

	res := w.Execute(context.Background(), "greet", st, nil)
	require.NoError(t, res.Err)
	msg := res.Result.(spec.Message)
	assert.Equal(t, "hello there", msg.Parts[0].(spec.TextPart).Text)
	assert.Equal(t, 1, client.CallCount)
}

func TestStageWorker_ToolLoopResolvesAndFeedsBackResult(t *testing.T) {
	client := &llm.MockClient{Responses: []llm.Response{
		functionCallResponse("call-1", "echo", `{"x":1}`),
		textResponse("done"),
	}}

	tools := map[string]tool.Tool{"echo": stubTool{out: json.RawMessage(`{"ok":true}`)}}
	w := NewStageWorker("use-tool", client, tools, NewStateManager(nil, nil), nil, 5)
	st := spec.Stage{Name: "use-tool", LLM: &spec.LLMConfig{Model: "m", Tools: []spec.ToolRef{{Name: "echo"}}}}

	res := w.Execute(context.Background(), "use-tool", st, nil)
	require.NoError(t, res.Err)
	assert.Equal(t, 2, client.CallCount)

	last := client.LastMessages[len(client.LastMessages)-1]
	part := last.Parts[0].(spec.FunctionResultPart)
	assert.Equal(t, "echo", part.Name)
	assert.JSONEq(t, `{"ok":true}`, string(part.Result))
}

func TestStageWorker_ToolErrorBecomesFunctionResultError(t *testing.T) {
	client := &llm.MockClient{Responses: []llm.Response{
		functionCallResponse("call-1", "echo", `{}`),
		textResponse("recovered"),
	}}
	tools := map[string]tool.Tool{"echo": stubTool{err: errors.New("tool blew up")}}
	w := NewStageWorker("use-tool", client, tools, NewStateManager(nil, nil), nil, 5)
	st := spec.Stage{Name: "use-tool", LLM: &spec.LLMConfig{Model: "m", Tools: []spec.ToolRef{{Name: "echo"}}}}

	res := w.Execute(context.Background(), "use-tool", st, nil)
	require.NoError(t, res.Err)
	last := client.LastMessages[len(client.LastMessages)-1]
	part := last.Parts[0].(spec.FunctionResultPart)
	assert.Equal(t, "tool blew up", part.Error)
}

func TestStageWorker_UndeclaredToolContinuesLoop(t *testing.T) {
	client := &llm.MockClient{Responses: []llm.Response{
		functionCallResponse("call-1", "mystery", `{}`),
		textResponse("fallback"),
	}}
	w := NewStageWorker("s", client, map[string]tool.Tool{}, NewStateManager(nil, nil), nil, 5)
	st := spec.Stage{Name: "s", LLM: &spec.LLMConfig{Model: "m"}}

	res := w.Execute(context.Background(), "s", st, nil)
	require.NoError(t, res.Err)
	assert.Equal(t, 2, client.CallCount)
}

func TestStageWorker_ExhaustsIterationsReturnsError(t *testing.T) {
	responses := make([]llm.Response, 10)
	for i := range responses {
		responses[i] = functionCallResponse("call", "echo", `{}`)
	}
	client := &llm.MockClient{Responses: responses}
	tools := map[string]tool.Tool{"echo": stubTool{out: json.RawMessage(`{}`)}}
	w := NewStageWorker("loopy", client, tools, NewStateManager(nil, nil), nil, 3)
	st := spec.Stage{Name: "loopy", LLM: &spec.LLMConfig{Model: "m", Tools: []spec.ToolRef{{Name: "echo"}}}}

	res := w.Execute(context.Background(), "loopy", st, nil)
	require.Error(t, res.Err)
	assert.Equal(t, 3, client.CallCount)
}

func TestStageWorker_CompletionErrorWraps(t *testing.T) {
	client := &llm.MockClient{Err: errors.New("endpoint down")}
	w := NewStageWorker("s", client, nil, NewStateManager(nil, nil), nil, 5)
	st := spec.Stage{Name: "s", LLM: &spec.LLMConfig{Model: "m"}}

	res := w.Execute(context.Background(), "s", st, nil)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "endpoint down")
}
