package llm

import (
	"context"
	"testing"

	"github.com/flowforge/agentcore/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_ScriptedResponses(t *testing.T) {
	c := NewMockClient()
	c.SetTextResponses("first", "second")

	r1, err := c.Completion(context.Background(), "m", nil, nil, spec.LLMParams{})
	require.NoError(t, err)
	assert.Equal(t, "assistant", r1.Message.Role)

	r2, err := c.Completion(context.Background(), "m", nil, nil, spec.LLMParams{})
	require.NoError(t, err)
	_, isFC := r2.FunctionCall()
	assert.False(t, isFC)

	_, err = c.Completion(context.Background(), "m", nil, nil, spec.LLMParams{})
	require.Error(t, err)

	assert.Equal(t, 3, c.CallCount)
}

func TestMockClient_FunctionCall(t *testing.T) {
	c := NewMockClient()
	c.Responses = []Response{
		{Message: spec.Message{Role: "assistant", Parts: []spec.MessagePart{
			spec.FunctionCallPart{ID: "1", Name: "echo", Args: []byte(`{"s":"hi"}`)},
		}}},
	}

	r, err := c.Completion(context.Background(), "m", nil, nil, spec.LLMParams{})
	require.NoError(t, err)
	fc, ok := r.FunctionCall()
	require.True(t, ok)
	assert.Equal(t, "echo", fc.Name)
}

func TestMockClient_ContextCancelled(t *testing.T) {
	c := NewMockClient()
	c.SetTextResponses("x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Completion(ctx, "m", nil, nil, spec.LLMParams{})
	require.Error(t, err)
}
