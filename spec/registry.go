package spec

import "fmt"

// DeserializationError is returned when a persisted spec references a
// named implementation (LLM client, memory backend, tool) that the
// runtime's Registry does not know about.
type DeserializationError struct {
	Message string
	Module  string
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Module)
}

// Registry is the set of fully-qualified implementation names the
// runtime has loaded: LLM clients, memory backends, and tools. It exists
// so Deserialize can fail fast and precisely instead of discovering a missing
// implementation only when a stage first tries to dispatch. Concrete
// registration happens at process wiring time; this package only tracks names,
// never the implementations themselves (those are external collaborators).
type Registry struct {
	llmClients map[string]bool
	backends   map[string]bool
	tools      map[string]bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		llmClients: map[string]bool{},
		backends:   map[string]bool{},
		tools:      map[string]bool{},
	}
}

func (r *Registry) RegisterLLMClient(name string) { r.llmClients[name] = true }
func (r *Registry) RegisterBackend(name string)    { r.backends[name] = true }
func (r *Registry) RegisterTool(name string)       { r.tools[name] = true }

func (r *Registry) HasLLMClient(name string) bool { return r.llmClients[name] }
func (r *Registry) HasBackend(name string) bool    { return r.backends[name] }
func (r *Registry) HasTool(name string) bool       { return r.tools[name] }

// CheckReferences walks every named reference in an AgentSpec and
// returns a *DeserializationError for the first one not present in the
// registry.
func (r *Registry) CheckReferences(as *AgentSpec) error {
	for _, st := range as.Stages {
		if st.LLM == nil {
			continue
		}
		if st.LLM.ClientRef != "" && !r.HasLLMClient(st.LLM.ClientRef) {
			return &DeserializationError{Message: "Module not loaded", Module: st.LLM.ClientRef}
		}
		for _, t := range st.LLM.Tools {
			if !r.HasTool(t.Name) {
				return &DeserializationError{Message: "Module not loaded", Module: t.Name}
			}
		}
	}
	for _, ms := range as.MemorySources {
		if ms.BackendRef != "" && !r.HasBackend(ms.BackendRef) {
			return &DeserializationError{Message: "Module not loaded", Module: ms.BackendRef}
		}
	}
	return nil
}
