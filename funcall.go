package funcall

import (
	"context"
	"encoding/json"
	"fmt"
)

// Function is the contract for an LLM-callable function description.
// It is provider-agnostic (no knowledge of OpenAI, Anthropic, etc.).
type Function interface {
	Name() string
	Description() string
	// Parameters returns a valid JSON Schema as map (compatible with LLM tool definitions).
	Parameters() map[string]any
}

// Caller is implemented by functions built with NewFunc. Call parses and
// validates argsJSON, invokes the underlying Go function, and returns the
// marshaled result.
type Caller interface {
	Call(ctx context.Context, argsJSON []byte) (json.RawMessage, error)
}

// Describer supplies the type-level description for the declarative struct
// form of Normalize. Implement it on the argument struct (value receiver, or
// pass a pointer) when the description is not given via WithDescription.
type Describer interface {
	Description() string
}

// Wrapper is the tool-wrapper input form: a value exposing its own name and
// description plus a nested declarative argument struct. Normalization
// reflects the schema from Args() and overrides name/description with the
// wrapper's own values when they are non-empty.
type Wrapper interface {
	Name() string
	Description() string
	Args() any
}

// Descriptor is the canonical, provider-agnostic description of one callable:
// name, purpose, and a JSON Schema for its parameters. Its JSON form is the
// wire envelope providers expect (see MarshalJSON).
type Descriptor struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// wireFunction and wireDescriptor pin the exact envelope key names and
// nesting; this shape is the interoperability contract with provider APIs.
type wireFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type wireDescriptor struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

// MarshalJSON encodes the descriptor as
// {"type":"function","function":{"name":...,"description":...,"parameters":{...}}}.
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireDescriptor{
		Type: "function",
		Function: wireFunction{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		},
	})
}

// UnmarshalJSON decodes the wire envelope produced by MarshalJSON.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var w wireDescriptor
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Type != "function" {
		return fmt.Errorf("unexpected descriptor type %q", w.Type)
	}
	d.Name = w.Function.Name
	d.Description = w.Function.Description
	d.Parameters = w.Function.Parameters
	return nil
}

// Proposal is a single invocation request as produced by the model:
// a function name and its raw, unvalidated JSON argument payload.
type Proposal struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"arguments"`
}

// ProposalSource adapts a provider-specific reply to the flat proposal list
// this package consumes. Provider clients implement it on their reply types;
// the reply's full shape (text content, usage, metadata) stays opaque here.
type ProposalSource interface {
	Proposals() []Proposal
}

// Invocation is one extracted proposal. Type is the matched function name and
// Args the decoded arguments. Value holds the constructed typed instance when
// Binder.Extract found a bound Go type for the proposal. Err is set instead
// when the proposal failed and extraction is collecting errors.
type Invocation struct {
	ID    string         `json:"id,omitempty"`
	Type  string         `json:"type"`
	Args  map[string]any `json:"args"`
	Value any            `json:"-"`
	Err   error          `json:"-"`
}

// Request is the function-calling fragment of an outbound chat request.
// Provider clients translate it into their own wire format; the JSON tags
// match the common OpenAI-compatible shape.
type Request struct {
	Tools      []*Descriptor `json:"tools,omitempty"`
	ToolChoice any           `json:"tool_choice,omitempty"`
}
