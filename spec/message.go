package spec

import (
	"encoding/json"
	"fmt"
)

// Message is one turn in a conversation: a role ("system", "user",
// "assistant") and an ordered list of parts.
type Message struct {
	Role  string        `json:"role"`
	Parts []MessagePart `json:"parts"`
}

// MessagePart is the tagged-variant union over exactly one of Text, File,
// Data, FunctionCall, FunctionResult, or Thought. Each variant carries a
// stable "__struct__" tag both for in-memory type switches and for the
// JSON wire form.
type MessagePart interface {
	messagePartTag() string
}

// TextPart carries plain text content.
type TextPart struct {
	Text string `json:"text"`
}

func (TextPart) messagePartTag() string { return "Text" }

// FilePart carries file content either inline (Bytes, base64-encoded
// automatically by encoding/json because the field type is []byte) or by
// reference (URI).
type FilePart struct {
	Bytes []byte `json:"bytes,omitempty"`
	URI   string `json:"uri,omitempty"`
	Mime  string `json:"mime,omitempty"`
	Name  string `json:"name,omitempty"`
}

func (FilePart) messagePartTag() string { return "File" }

// DataPart carries arbitrary structured data, e.g. a tool's JSON result
// embedded directly in a conversation turn.
type DataPart struct {
	Structured json.RawMessage `json:"structured"`
}

func (DataPart) messagePartTag() string { return "Data" }

// FunctionCallPart is an LLM-issued request to invoke a declared tool.
type FunctionCallPart struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

func (FunctionCallPart) messagePartTag() string { return "FunctionCall" }

// FunctionResultPart is the outcome of executing a FunctionCallPart, fed
// back to the LLM on the next round.
type FunctionResultPart struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

func (FunctionResultPart) messagePartTag() string { return "FunctionResult" }

// ThoughtPart carries an opaque reasoning signature some providers return
// alongside their visible response; the runtime never inspects its
// contents, only preserves it across round-trips.
type ThoughtPart struct {
	Signature string `json:"signature"`
}

func (ThoughtPart) messagePartTag() string { return "Thought" }

// wirePart is the on-wire envelope for a MessagePart: the struct tag plus
// the variant's own fields folded in at the top level.
type wirePart struct {
	Struct string          `json:"__struct__"`
	Body   json.RawMessage `json:"-"`
}

// marshalPart flattens the variant's fields alongside "__struct__" so the
// wire form reads as a single flat object, e.g.
// {"__struct__":"Text","text":"hi"}.
func marshalPart(tag string, v interface{}) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["__struct__"] = json.RawMessage(fmt.Sprintf("%q", tag))
	return json.Marshal(fields)
}

func (p TextPart) MarshalJSON() ([]byte, error) { return marshalPart("Text", struct {
	Text string `json:"text"`
}{p.Text}) }

func (p FilePart) MarshalJSON() ([]byte, error) {
	type alias FilePart
	return marshalPart("File", alias(p))
}

func (p DataPart) MarshalJSON() ([]byte, error) {
	type alias DataPart
	return marshalPart("Data", alias(p))
}

func (p FunctionCallPart) MarshalJSON() ([]byte, error) {
	type alias FunctionCallPart
	return marshalPart("FunctionCall", alias(p))
}

func (p FunctionResultPart) MarshalJSON() ([]byte, error) {
	type alias FunctionResultPart
	return marshalPart("FunctionResult", alias(p))
}

func (p ThoughtPart) MarshalJSON() ([]byte, error) {
	type alias ThoughtPart
	return marshalPart("Thought", alias(p))
}

// MarshalMessageParts serializes a slice of MessagePart preserving each
// variant's tag.
func MarshalMessageParts(parts []MessagePart) ([]byte, error) {
	raws := make([]json.RawMessage, len(parts))
	for i, p := range parts {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal part %d (%s): %w", i, p.messagePartTag(), err)
		}
		raws[i] = b
	}
	return json.Marshal(raws)
}

// UnmarshalMessageParts reverses MarshalMessageParts, dispatching on each
// element's "__struct__" tag.
func UnmarshalMessageParts(data []byte) ([]MessagePart, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	parts := make([]MessagePart, len(raws))
	for i, raw := range raws {
		p, err := UnmarshalMessagePart(raw)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		parts[i] = p
	}
	return parts, nil
}

// UnmarshalMessagePart decodes a single tagged MessagePart.
func UnmarshalMessagePart(raw json.RawMessage) (MessagePart, error) {
	var head struct {
		Struct string `json:"__struct__"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Struct {
	case "Text":
		var p TextPart
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "File":
		var p FilePart
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "Data":
		var p DataPart
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "FunctionCall":
		var p FunctionCallPart
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "FunctionResult":
		var p FunctionResultPart
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "Thought":
		var p ThoughtPart
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown message part __struct__ %q", head.Struct)
	}
}

// MarshalJSON implements json.Marshaler for Message, routing Parts
// through the tagged-variant codec.
func (m Message) MarshalJSON() ([]byte, error) {
	partsJSON, err := MarshalMessageParts(m.Parts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Role  string          `json:"role"`
		Parts json.RawMessage `json:"parts"`
	}{Role: m.Role, Parts: partsJSON})
}

// UnmarshalJSON implements json.Unmarshaler for Message.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role  string          `json:"role"`
		Parts json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parts, err := UnmarshalMessageParts(raw.Parts)
	if err != nil {
		return err
	}
	m.Role = raw.Role
	m.Parts = parts
	return nil
}
