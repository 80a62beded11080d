package funcall

import (
	"bytes"
	"encoding/json"
	"maps"
	"reflect"

	"github.com/kaptinlin/jsonrepair"
	jsv "github.com/santhosh-tekuri/jsonschema/v6"
)

// Extractor provides JSON Schema generation and two-layer validation
// (schema + Validatable) for type T without binding to the Function
// interface. Use it in custom orchestrators that need schema export and
// validated parsing but not the Binder pipeline.
type Extractor[T any] struct {
	schemaMap  map[string]any
	compiled   *jsv.Schema
	allowExtra bool
}

// NewExtractor creates an Extractor for type T. WithStrict makes the
// generated schema use additionalProperties: false with all properties
// required (OpenAI Structured Outputs); WithExtraArguments lets incoming
// payloads carry undeclared fields.
func NewExtractor[T any](opts ...Option) (*Extractor[T], error) {
	o := applyOptions(opts)
	schemaMap, compiled, err := reflectSchema(reflect.TypeOf((*T)(nil)).Elem(), o.strict)
	if err != nil {
		return nil, err
	}
	return &Extractor[T]{
		schemaMap:  schemaMap,
		compiled:   compiled,
		allowExtra: o.extraArguments,
	}, nil
}

// Schema returns a shallow copy of the JSON Schema (top-level keys only).
// Nested maps are shared; callers must not mutate them.
func (e *Extractor[T]) Schema() map[string]any {
	return maps.Clone(e.schemaMap)
}

// ParseAndValidate deserializes argsJSON into T: field-level checks first
// (missing required, type mismatch, undeclared argument — each named in the
// ValidationError), then full schema validation, then Validatable.Validate()
// if T implements it. Errors carry messages safe to pass back to the model
// for self-correction.
func (e *Extractor[T]) ParseAndValidate(argsJSON []byte) (T, error) {
	var zero T
	inst, err := decodeInstance(argsJSON)
	if err != nil {
		return zero, &ArgumentDecodeError{Err: err}
	}
	if m, ok := inst.(map[string]any); ok {
		if err := checkArguments("", e.schemaMap, m, e.allowExtra); err != nil {
			return zero, err
		}
	}
	if err := validateAgainstSchema("", e.compiled, inst); err != nil {
		return zero, err
	}
	var args T
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return zero, &ArgumentDecodeError{Err: err}
	}
	if err := runLayer2Validation(args); err != nil {
		if IsValidationError(err) {
			return zero, err
		}
		return zero, &ValidationError{Reason: err.Error()}
	}
	return args, nil
}

// runLayer2Validation runs Validatable.Validate() on args; if args does not implement Validatable,
// it tries &args for value types (pointer receiver). Never calls Validate twice for the same receiver.
func runLayer2Validation[T any](args T) error {
	if err := validateCustom(any(args)); err != nil {
		return err
	}
	if _, ok := any(args).(Validatable); ok {
		return nil
	}
	typ := reflect.TypeOf(args)
	if typ == nil || typ.Kind() == reflect.Pointer {
		return nil
	}
	return validateCustom(any(&args))
}

// Extract converts proposals into generic invocations: each proposal's
// arguments are decoded as JSON with no further validation. Output order
// equals proposal order; duplicates each produce their own entry. By default
// a malformed proposal is recorded on Invocation.Err and the rest still
// extract; WithStrictExtraction fails the whole batch on the first error.
func Extract(proposals []Proposal, opts ...ExtractOption) ([]Invocation, error) {
	o := applyExtractOptions(opts)
	out := make([]Invocation, 0, len(proposals))
	for _, p := range proposals {
		inv := Invocation{ID: p.ID, Type: p.Name}
		args, _, err := decodeProposalArgs(p, o.repair)
		if err != nil {
			if o.strict {
				return nil, err
			}
			inv.Err = err
		} else {
			inv.Args = args
		}
		out = append(out, inv)
	}
	return out, nil
}

// ExtractFrom is Extract over a provider reply adapter.
func ExtractFrom(src ProposalSource, opts ...ExtractOption) ([]Invocation, error) {
	return Extract(src.Proposals(), opts...)
}

// decodeProposalArgs decodes a proposal's raw argument payload into a map.
// Empty payloads count as {} (models omit arguments for parameterless
// functions). With repair enabled, a failed decode is retried through
// jsonrepair before being reported.
func decodeProposalArgs(p Proposal, repair bool) (map[string]any, []byte, error) {
	raw := bytes.TrimSpace(p.Args)
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	var m map[string]any
	err := json.Unmarshal(raw, &m)
	if err == nil {
		return m, raw, nil
	}
	if repair {
		if fixed, rerr := jsonrepair.JSONRepair(string(raw)); rerr == nil {
			m = nil
			if err2 := json.Unmarshal([]byte(fixed), &m); err2 == nil {
				return m, []byte(fixed), nil
			}
		}
	}
	return nil, nil, &ArgumentDecodeError{Function: p.Name, Err: err}
}
