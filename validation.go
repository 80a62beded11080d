package funcall

import (
	"encoding/json"
	"errors"
	"math"
	"strings"

	jsv "github.com/santhosh-tekuri/jsonschema/v6"
)

// Validatable is implemented by argument structs that need custom business validation.
// Called after schema validation and construction.
type Validatable interface {
	Validate() error
}

// checkArguments verifies decoded arguments against the descriptor's
// parameters schema at field granularity, so failures name the offending
// field and the expected vs actual JSON type. Schema validation catches the
// rest (enums, nested constraints). Schemas without a properties map skip the
// per-key checks.
func checkArguments(fnName string, schemaMap map[string]any, args map[string]any, allowExtra bool) error {
	for _, r := range requiredList(schemaMap) {
		if _, ok := args[r]; !ok {
			return &ValidationError{Function: fnName, Field: r, Reason: "missing required argument"}
		}
	}
	props, ok := schemaMap["properties"].(map[string]any)
	if !ok || len(props) == 0 {
		return nil
	}
	for key, val := range args {
		prop, ok := props[key].(map[string]any)
		if !ok {
			if allowExtra {
				continue
			}
			return &ValidationError{Function: fnName, Field: key, Reason: "argument not declared"}
		}
		want, _ := prop["type"].(string)
		if want == "" {
			continue
		}
		if got := jsonTypeOf(val); !typeAccepts(want, got) {
			return &ValidationError{Function: fnName, Field: key, Want: want, Got: got}
		}
	}
	return nil
}

// jsonTypeOf names the JSON type of a decoded value. Integral numbers report
// "integer"; both float64 (encoding/json) and json.Number (validator) inputs
// are handled.
func jsonTypeOf(v any) string {
	switch n := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64:
		if n == math.Trunc(n) {
			return "integer"
		}
		return "number"
	case json.Number:
		if !strings.ContainsAny(n.String(), ".eE") {
			return "integer"
		}
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}

// typeAccepts reports whether a value of JSON type got satisfies schema type want.
// Integers satisfy "number".
func typeAccepts(want, got string) bool {
	if want == got {
		return true
	}
	return want == "number" && got == "integer"
}

// validateAgainstSchema runs full schema validation on already-parsed value v
// (decoded with decodeInstance). Failures are reported as ValidationError with
// the deepest failing instance location as the field.
func validateAgainstSchema(fnName string, compiled *jsv.Schema, v any) error {
	if compiled == nil {
		return nil
	}
	err := compiled.Validate(v)
	if err == nil {
		return nil
	}
	var field string
	var ve *jsv.ValidationError
	if errors.As(err, &ve) {
		field = leafInstanceLocation(ve)
	}
	return &ValidationError{Function: fnName, Field: field, Reason: err.Error()}
}

// leafInstanceLocation descends to the first leaf cause and joins its
// instance location into a dotted path.
func leafInstanceLocation(ve *jsv.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return strings.Join(ve.InstanceLocation, ".")
}

// validateCustom runs Layer 2 (Validatable) if args implements it.
func validateCustom(args any) error {
	if v, ok := args.(Validatable); ok {
		return v.Validate()
	}
	return nil
}
