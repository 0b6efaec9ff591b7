package spec

import (
	"encoding/json"
	"fmt"
)

// APIKeyValue is the tagged union for LLMParams.APIKey: either a literal
// secret, a deferred module-function-arity reference the runtime can
// reconstruct at dispatch time, or a sentinel marking a value that could
// not be serialized at all (e.g. it was a Go closure in memory when
// Serialize was called).
type APIKeyValue interface {
	apiKeyTag() string
}

// LiteralSecret is an inline secret value, serialized as-is. Agent specs
// destined for shared/persisted storage should generally prefer
// DeferredSecret instead.
type LiteralSecret struct {
	Value string `json:"value"`
}

func (LiteralSecret) apiKeyTag() string { return "Literal" }

// DeferredSecret names a module-qualified function of arity 0 or 1 that
// yields the key. This package records and round-trips the reference
// only and never calls the function; the stage worker hands LLMParams
// to the LLM client unchanged. This keeps secrets out of persisted JSON
// while remaining round-trippable: Deserialize reconstructs the
// reference, not the value.
type DeferredSecret struct {
	Module   string `json:"module"`
	Function string `json:"function"`
	Arity    int    `json:"arity"`
}

func (DeferredSecret) apiKeyTag() string { return "Deferred" }

// NonSerializableSecret is a sentinel recorded in place of a value that
// had no serializable representation (e.g. an in-memory-only callback)
// when Serialize ran. Deserialize reconstructs this sentinel rather than
// failing, so the rest of the spec round-trips even though this one
// field cannot.
type NonSerializableSecret struct{}

func (NonSerializableSecret) apiKeyTag() string { return "NonSerializable" }

func marshalAPIKey(v APIKeyValue) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	fields["__struct__"] = json.RawMessage(fmt.Sprintf("%q", v.apiKeyTag()))
	return json.Marshal(fields)
}

func unmarshalAPIKey(data json.RawMessage) (APIKeyValue, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var head struct {
		Struct string `json:"__struct__"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch head.Struct {
	case "Literal":
		var v LiteralSecret
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "Deferred":
		var v DeferredSecret
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		if v.Arity != 0 && v.Arity != 1 {
			return nil, fmt.Errorf("deferred secret %s.%s: arity must be 0 or 1, got %d", v.Module, v.Function, v.Arity)
		}
		return v, nil
	case "NonSerializable":
		return NonSerializableSecret{}, nil
	default:
		return nil, fmt.Errorf("unknown api_key __struct__ %q", head.Struct)
	}
}
