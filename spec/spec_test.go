package spec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrF(f float64) *float64 { return &f }
func ptrI(i int) *int         { return &i }

func sampleSpec() *AgentSpec {
	return &AgentSpec{
		Stages: []Stage{
			{Name: "fetch", Entrypoint: true},
			{
				Name:      "summarize",
				DependsOn: []string{"fetch"},
				LLM: &LLMConfig{
					Model:     "gpt-test",
					ClientRef: "openai.chat",
					Params: LLMParams{
						Temperature: ptrF(0.5),
						MaxTokens:   ptrI(256),
						APIKey:      DeferredSecret{Module: "env", Function: "get", Arity: 0},
					},
					PromptMessages: []Message{
						{Role: "user", Parts: []MessagePart{TextPart{Text: "summarize {{fetch.result}}"}}},
					},
					Tools: []ToolRef{{Name: "echo"}},
				},
			},
		},
		MemorySources: []MemorySourceSpec{
			{Name: "scratch", BackendRef: "inprocess", Default: true},
		},
		AgentConfig:    AgentConfig{AgentState: StateStateless, Version: "1.0.0", Name: "demo"},
		CallbackModule: "demo.callbacks",
	}
}

func TestValidate_Accepts(t *testing.T) {
	require.NoError(t, Validate(sampleSpec()))
}

func TestValidate_RejectsCycle(t *testing.T) {
	s := sampleSpec()
	s.Stages[0].DependsOn = []string{"summarize"}
	assert.Error(t, Validate(s))
}

func TestValidate_RejectsDuplicateName(t *testing.T) {
	s := sampleSpec()
	s.Stages = append(s.Stages, Stage{Name: "fetch"})
	assert.Error(t, Validate(s))
}

func TestValidate_RejectsBadTemperature(t *testing.T) {
	s := sampleSpec()
	s.Stages[1].LLM.Params.Temperature = ptrF(2.5)
	assert.Error(t, Validate(s))
}

func TestValidate_RejectsBadTopP(t *testing.T) {
	s := sampleSpec()
	s.Stages[1].LLM.Params.TopP = ptrF(1.5)
	assert.Error(t, Validate(s))
}

func TestValidate_RejectsBadPenalty(t *testing.T) {
	s := sampleSpec()
	s.Stages[1].LLM.Params.FrequencyPenalty = ptrF(-3)
	assert.Error(t, Validate(s))
}

func TestValidate_RejectsMultipleDefaultMemorySources(t *testing.T) {
	s := sampleSpec()
	s.MemorySources = append(s.MemorySources, MemorySourceSpec{Name: "other", BackendRef: "inprocess", Default: true})
	assert.Error(t, Validate(s))
}

func TestSerializeDeserialize_RoundTrip(t *testing.T) {
	s := sampleSpec()

	raw, err := Serialize(s)
	require.NoError(t, err)

	reg := NewRegistry()
	reg.RegisterLLMClient("openai.chat")
	reg.RegisterBackend("inprocess")
	reg.RegisterTool("echo")

	got, err := Deserialize(raw, reg)
	require.NoError(t, err)

	assert.Equal(t, s.AgentConfig, got.AgentConfig)
	assert.Equal(t, s.CallbackModule, got.CallbackModule)
	require.Len(t, got.Stages, 2)
	assert.Equal(t, s.Stages[0].Name, got.Stages[0].Name)
	assert.True(t, got.Stages[0].Entrypoint)
	require.NotNil(t, got.Stages[1].LLM)
	assert.Equal(t, *s.Stages[1].LLM.Params.Temperature, *got.Stages[1].LLM.Params.Temperature)
	assert.Equal(t, s.Stages[1].LLM.Params.APIKey, got.Stages[1].LLM.Params.APIKey)
	assert.Equal(t, s.MemorySources, got.MemorySources)
}

func TestDeserialize_UnknownModule(t *testing.T) {
	s := sampleSpec()
	raw, err := Serialize(s)
	require.NoError(t, err)

	reg := NewRegistry() // nothing registered
	_, err = Deserialize(raw, reg)
	require.Error(t, err)
	var derr *DeserializationError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "Module not loaded", derr.Message)
	assert.Equal(t, "openai.chat", derr.Module)
}

func TestMessagePart_RoundTrip(t *testing.T) {
	parts := []MessagePart{
		TextPart{Text: "hi"},
		FilePart{Bytes: []byte("hello"), Mime: "text/plain", Name: "a.txt"},
		DataPart{Structured: json.RawMessage(`{"k":1}`)},
		FunctionCallPart{ID: "1", Name: "echo", Args: json.RawMessage(`{"s":"hi"}`)},
		FunctionResultPart{ID: "1", Name: "echo", Result: json.RawMessage(`"hi"`)},
		ThoughtPart{Signature: "abc"},
	}

	raw, err := MarshalMessageParts(parts)
	require.NoError(t, err)

	got, err := UnmarshalMessageParts(raw)
	require.NoError(t, err)
	require.Len(t, got, len(parts))

	assert.Equal(t, parts[0], got[0])
	gotFile, ok := got[1].(FilePart)
	require.True(t, ok)
	assert.Equal(t, "hello", string(gotFile.Bytes))
	assert.Equal(t, parts[3], got[3])
	assert.Equal(t, parts[5], got[5])
}

func TestMessage_RoundTrip(t *testing.T) {
	m := Message{Role: "user", Parts: []MessagePart{TextPart{Text: "hello"}}}
	raw, err := json.Marshal(m)
	require.NoError(t, err)

	var got Message
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, m, got)
}

func TestEntrypointStage_FirstByInsertion(t *testing.T) {
	s := sampleSpec()
	s.Stages = append(s.Stages, Stage{Name: "third", Entrypoint: true, DependsOn: []string{"summarize"}})

	ep, ok := s.EntrypointStage()
	require.True(t, ok)
	assert.Equal(t, "fetch", ep.Name)
}
