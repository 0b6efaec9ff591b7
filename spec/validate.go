package spec

import (
	"fmt"

	"github.com/flowforge/agentcore/dag"
)

// Validate checks the structural invariants: unique stage names,
// resolvable dependencies, an acyclic graph, legal LLMParams ranges, and
// a well-formed AgentConfig. It does not mutate as.
func Validate(as *AgentSpec) error {
	if len(as.Stages) == 0 {
		return fmt.Errorf("agent spec: at least one stage is required")
	}

	seen := make(map[string]bool, len(as.Stages))
	inputs := make([]dag.StageInput, 0, len(as.Stages))
	for _, st := range as.Stages {
		if st.Name == "" {
			return fmt.Errorf("agent spec: stage with empty name")
		}
		if seen[st.Name] {
			return fmt.Errorf("agent spec: duplicate stage name %q", st.Name)
		}
		seen[st.Name] = true

		for _, d := range st.DependsOn {
			if d == st.Name {
				return fmt.Errorf("agent spec: stage %q depends on itself", st.Name)
			}
		}

		if st.LLM != nil {
			if err := validateLLMParams(st.Name, st.LLM.Params); err != nil {
				return err
			}
		}

		inputs = append(inputs, dag.StageInput{Name: st.Name, Dependencies: st.DependsOn})
	}

	g := dag.Build(inputs)
	if err := g.Validate(); err != nil {
		return fmt.Errorf("agent spec: %w", err)
	}

	switch as.AgentConfig.AgentState {
	case StateStateful, StateStateless, "":
		// "" tolerated; callers may default it, but Deserialize requires a
		// concrete kind to be meaningful for the coordinator — enforce
		// there instead of here so hand-built specs in tests stay terse.
	default:
		return fmt.Errorf("agent spec: invalid agent_config.agent_state %q", as.AgentConfig.AgentState)
	}

	defaults := 0
	for _, ms := range as.MemorySources {
		if ms.Name == "" {
			return fmt.Errorf("agent spec: memory source with empty name")
		}
		if ms.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("agent spec: more than one memory source flagged default")
	}

	return nil
}

func validateLLMParams(stage string, p LLMParams) error {
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
		return fmt.Errorf("agent spec: stage %q temperature %.3f out of range [0,2]", stage, *p.Temperature)
	}
	if p.TopP != nil && (*p.TopP < 0 || *p.TopP > 1) {
		return fmt.Errorf("agent spec: stage %q top_p %.3f out of range [0,1]", stage, *p.TopP)
	}
	if p.FrequencyPenalty != nil && (*p.FrequencyPenalty < -2 || *p.FrequencyPenalty > 2) {
		return fmt.Errorf("agent spec: stage %q frequency_penalty %.3f out of range [-2,2]", stage, *p.FrequencyPenalty)
	}
	if p.PresencePenalty != nil && (*p.PresencePenalty < -2 || *p.PresencePenalty > 2) {
		return fmt.Errorf("agent spec: stage %q presence_penalty %.3f out of range [-2,2]", stage, *p.PresencePenalty)
	}
	return nil
}
