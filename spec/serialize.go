package spec

import (
	"encoding/json"
	"fmt"
)

// llmParamsWire mirrors LLMParams but with APIKey erased to raw JSON so
// the interface field can be marshaled/unmarshaled explicitly.
type llmParamsWire struct {
	MaxTokens                *int                   `json:"max_tokens,omitempty"`
	Temperature              *float64               `json:"temperature,omitempty"`
	TopP                     *float64               `json:"top_p,omitempty"`
	TopK                     *int                   `json:"top_k,omitempty"`
	FrequencyPenalty         *float64               `json:"frequency_penalty,omitempty"`
	PresencePenalty          *float64               `json:"presence_penalty,omitempty"`
	ThinkingBudget           *int                   `json:"thinking_budget,omitempty"`
	StructuredResponseSchema json.RawMessage        `json:"structured_response_schema,omitempty"`
	APIKey                   json.RawMessage        `json:"api_key,omitempty"`
	OtherParams              map[string]interface{} `json:"other_params,omitempty"`
}

// MarshalJSON implements json.Marshaler for LLMParams.
func (p LLMParams) MarshalJSON() ([]byte, error) {
	wire := llmParamsWire{
		MaxTokens:                p.MaxTokens,
		Temperature:              p.Temperature,
		TopP:                     p.TopP,
		TopK:                     p.TopK,
		FrequencyPenalty:         p.FrequencyPenalty,
		PresencePenalty:          p.PresencePenalty,
		ThinkingBudget:           p.ThinkingBudget,
		StructuredResponseSchema: p.StructuredResponseSchema,
		OtherParams:              p.OtherParams,
	}
	if p.APIKey != nil {
		raw, err := marshalAPIKey(p.APIKey)
		if err != nil {
			return nil, fmt.Errorf("marshal api_key: %w", err)
		}
		wire.APIKey = raw
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler for LLMParams.
func (p *LLMParams) UnmarshalJSON(data []byte) error {
	var wire llmParamsWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	key, err := unmarshalAPIKey(wire.APIKey)
	if err != nil {
		return fmt.Errorf("unmarshal api_key: %w", err)
	}
	p.MaxTokens = wire.MaxTokens
	p.Temperature = wire.Temperature
	p.TopP = wire.TopP
	p.TopK = wire.TopK
	p.FrequencyPenalty = wire.FrequencyPenalty
	p.PresencePenalty = wire.PresencePenalty
	p.ThinkingBudget = wire.ThinkingBudget
	p.StructuredResponseSchema = wire.StructuredResponseSchema
	p.APIKey = key
	p.OtherParams = wire.OtherParams
	return nil
}

// stageWire is Stage's wire form, carrying the "__struct__": "Stage" tag
// every persisted stage record requires.
type stageWire struct {
	Struct     string     `json:"__struct__"`
	Name       string     `json:"name"`
	DependsOn  []string   `json:"depends_on,omitempty"`
	Entrypoint bool       `json:"entrypoint,omitempty"`
	LLM        *LLMConfig `json:"llm,omitempty"`
}

func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(stageWire{
		Struct:     "Stage",
		Name:       s.Name,
		DependsOn:  s.DependsOn,
		Entrypoint: s.Entrypoint,
		LLM:        s.LLM,
	})
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	var wire stageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.Name = wire.Name
	s.DependsOn = wire.DependsOn
	s.Entrypoint = wire.Entrypoint
	s.LLM = wire.LLM
	return nil
}

type memorySourceWire struct {
	Struct      string                 `json:"__struct__"`
	Name        string                 `json:"name"`
	BackendRef  string                 `json:"backend_ref"`
	Opts        map[string]interface{} `json:"opts,omitempty"`
	Default     bool                   `json:"default,omitempty"`
	Description string                 `json:"description,omitempty"`
}

func (m MemorySourceSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(memorySourceWire{
		Struct:      "MemorySource",
		Name:        m.Name,
		BackendRef:  m.BackendRef,
		Opts:        m.Opts,
		Default:     m.Default,
		Description: m.Description,
	})
}

func (m *MemorySourceSpec) UnmarshalJSON(data []byte) error {
	var wire memorySourceWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Name = wire.Name
	m.BackendRef = wire.BackendRef
	m.Opts = wire.Opts
	m.Default = wire.Default
	m.Description = wire.Description
	return nil
}

// persistedDocument is the root JSON shape from keys "agent", "memory",
// "agent_config".
type persistedDocument struct {
	Agent         agentBlock         `json:"agent"`
	Memory        []MemorySourceSpec `json:"memory"`
	AgentConfig   AgentConfig        `json:"agent_config"`
}

type agentBlock struct {
	Stages         []Stage `json:"stages"`
	CallbackModule string  `json:"callback_module"`
}

// Serialize renders an AgentSpec to its persisted JSON document form.
func Serialize(s *AgentSpec) ([]byte, error) {
	doc := persistedDocument{
		Agent: agentBlock{
			Stages:         s.Stages,
			CallbackModule: s.CallbackModule,
		},
		Memory:      s.MemorySources,
		AgentConfig: s.AgentConfig,
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Deserialize parses a persisted JSON document back into an AgentSpec and
// validates its stages list, memory sources list, and agent_config map.
// If reg is non-nil, every named implementation reference (LLM
// client_ref, memory backend_ref, tool name) is checked against it; an
// unregistered name produces a *DeserializationError naming the missing
// module.
func Deserialize(data []byte, reg *Registry) (*AgentSpec, error) {
	var doc persistedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode agent spec document: %w", err)
	}

	as := &AgentSpec{
		Stages:         doc.Agent.Stages,
		MemorySources:  doc.Memory,
		AgentConfig:    doc.AgentConfig,
		CallbackModule: doc.Agent.CallbackModule,
	}

	if reg != nil {
		if err := reg.CheckReferences(as); err != nil {
			return nil, err
		}
	}

	if err := Validate(as); err != nil {
		return nil, err
	}
	if as.AgentConfig.AgentState == "" {
		return nil, fmt.Errorf("agent spec: agent_config.agent_state is required")
	}
	return as, nil
}
