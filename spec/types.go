// Package spec defines the AgentSpec data model — the canonical,
// immutable-after-creation description of a multi-stage agent — along
// with its validation rules and JSON serialization contract. AgentSpec
// itself is produced by an external declarative surface (a DSL compiler)
// or by Deserialize; this package only consumes/validates/round-trips
// the struct, it never parses a DSL.
package spec

import "encoding/json"

// AgentStateKind distinguishes stateless (single-shot, terminates after
// completion) agents from stateful (idles and accepts further inbound
// messages) agents.
type AgentStateKind string

const (
	StateStateful  AgentStateKind = "stateful"
	StateStateless AgentStateKind = "stateless"
)

// AgentConfig holds the {agent_state, version, name} triple.
type AgentConfig struct {
	AgentState AgentStateKind `json:"agent_state"`
	Version    string         `json:"version"`
	Name       string         `json:"name"`
}

// AgentSpec is immutable after construction. Build one with New (from a
// DSL compiler or hand-assembled in tests) or Deserialize (from JSON).
type AgentSpec struct {
	Stages         []Stage           `json:"stages"`
	MemorySources  []MemorySourceSpec `json:"memory_sources"`
	AgentConfig    AgentConfig       `json:"agent_config"`
	CallbackModule string            `json:"callback_module"`
}

// Stage is one DAG node: a unique name, its dependencies, whether it is
// the stateful entrypoint, and an optional LLM interaction.
type Stage struct {
	Name       string     `json:"name"`
	DependsOn  []string   `json:"depends_on,omitempty"`
	Entrypoint bool       `json:"entrypoint,omitempty"`
	LLM        *LLMConfig `json:"llm,omitempty"`
}

// LLMConfig describes one stage's LLM interaction: the model, the named
// client implementation to resolve at runtime, generation parameters,
// the prompt message template, and the tools available during the
// tool-calling loop.
type LLMConfig struct {
	Model         string    `json:"model"`
	ClientRef     string    `json:"client_ref"`
	Params        LLMParams `json:"params,omitempty"`
	PromptMessages []Message `json:"prompt_messages,omitempty"`
	Tools         []ToolRef `json:"tools,omitempty"`
}

// ToolRef names a tool implementation a stage's LLM may invoke. The tool
// itself (a capability implementing Tool.Run) is resolved by the caller
// against a registry; the runtime only carries the reference.
type ToolRef struct {
	Name string `json:"name"`
}

// LLMParams holds the generation parameters for a stage's LLM call.
// Pointer fields distinguish "unset" from "explicit zero value" so
// validation can tell the difference and defaults can be layered by the
// caller.
type LLMParams struct {
	MaxTokens               *int             `json:"max_tokens,omitempty"`
	Temperature             *float64         `json:"temperature,omitempty"`
	TopP                    *float64         `json:"top_p,omitempty"`
	TopK                    *int             `json:"top_k,omitempty"`
	FrequencyPenalty        *float64         `json:"frequency_penalty,omitempty"`
	PresencePenalty         *float64         `json:"presence_penalty,omitempty"`
	ThinkingBudget          *int             `json:"thinking_budget,omitempty"`
	StructuredResponseSchema json.RawMessage `json:"structured_response_schema,omitempty"`
	APIKey                  APIKeyValue      `json:"api_key,omitempty"`
	OtherParams             map[string]interface{} `json:"other_params,omitempty"`
}

// MemorySourceSpec names one backend registered with the MemoryManager.
type MemorySourceSpec struct {
	Name        string                 `json:"name"`
	BackendRef  string                 `json:"backend_ref"`
	Opts        map[string]interface{} `json:"opts,omitempty"`
	Default     bool                   `json:"default,omitempty"`
	Description string                 `json:"description,omitempty"`
}

// New constructs an AgentSpec from already-validated parts. It does not
// itself call Validate — callers (the DSL compiler, or Deserialize)
// decide when validation runs.
func New(stages []Stage, memorySources []MemorySourceSpec, cfg AgentConfig, callbackModule string) *AgentSpec {
	return &AgentSpec{
		Stages:         stages,
		MemorySources:  memorySources,
		AgentConfig:    cfg,
		CallbackModule: callbackModule,
	}
}

// EntrypointStage returns the stage flagged entrypoint=true, preferring
// the first one encountered if more than one is flagged. If none carry
// the flag, the first stage in the spec is treated as the entrypoint.
func (s *AgentSpec) EntrypointStage() (Stage, bool) {
	for _, st := range s.Stages {
		if st.Entrypoint {
			return st, true
		}
	}
	if len(s.Stages) > 0 {
		return s.Stages[0], true
	}
	return Stage{}, false
}

// DefaultMemorySource returns the MemorySourceSpec flagged default, or
// the first source if none is flagged and at least one exists.
func (s *AgentSpec) DefaultMemorySource() (MemorySourceSpec, bool) {
	for _, m := range s.MemorySources {
		if m.Default {
			return m, true
		}
	}
	if len(s.MemorySources) > 0 {
		return s.MemorySources[0], true
	}
	return MemorySourceSpec{}, false
}
