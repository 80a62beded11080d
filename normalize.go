package funcall

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"

	jsv "github.com/santhosh-tekuri/jsonschema/v6"
)

// binding is one normalized input: its descriptor, the compiled validator for
// its parameters, and (when a Go type is bound) a decoder that constructs the
// typed value from raw arguments.
type binding struct {
	desc       *Descriptor
	compiled   *jsv.Schema
	allowExtra bool
	decode     func(raw []byte) (any, error) // nil for opaque and dynamic schemas
	fn         Function                      // set for Function inputs
}

// bindingProvider is implemented by functions built in this package so
// Normalize and Binder.Bind can reuse their already-built schema.
type bindingProvider interface {
	funcBinding() *binding
}

// Normalize converts one function-like value into its canonical Descriptor,
// or fails with a SchemaError when the value's shape cannot be reconciled.
// Accepted inputs, in dispatch order:
//
//   - a Function built by NewFunc or NewDynamicFunc (schema reused as-is)
//   - any other Function implementation (name, description, and schema taken
//     directly)
//   - a Wrapper (nested argument struct reflected; the wrapper's non-empty
//     name/description win)
//   - a struct or pointer to struct (name from the type, description from
//     Describer or WithDescription, parameters reflected from the fields)
//
// The returned descriptor shares its parameters map with the normalizer;
// callers must not mutate it.
func Normalize(input any, opts ...Option) (*Descriptor, error) {
	b, err := normalize(input, applyOptions(opts))
	if err != nil {
		return nil, err
	}
	return b.desc, nil
}

func normalize(input any, o options) (*binding, error) {
	if input == nil {
		return nil, &SchemaError{Reason: "input must not be nil"}
	}
	if bp, ok := input.(bindingProvider); ok {
		return bp.funcBinding(), nil
	}
	if f, ok := input.(Function); ok {
		return bindingFromFunction(f, o)
	}
	if w, ok := input.(Wrapper); ok {
		args := w.Args()
		if args == nil {
			return nil, &SchemaError{Name: w.Name(), Reason: "wrapper args schema must not be nil"}
		}
		inner := o
		if name := w.Name(); name != "" {
			inner.name = name
		}
		if desc := w.Description(); desc != "" {
			inner.description = desc
		}
		return normalizeStruct(args, inner)
	}
	typ := reflect.TypeOf(input)
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() == reflect.Struct {
		return normalizeStruct(input, o)
	}
	return nil, &SchemaError{Reason: fmt.Sprintf("unsupported input type %T", input)}
}

// normalizeStruct handles the declarative struct form: name from the type,
// description from options or Describer, fields reflected into the schema.
func normalizeStruct(input any, o options) (*binding, error) {
	typ := reflect.TypeOf(input)
	wasPointer := typ.Kind() == reflect.Pointer
	if wasPointer {
		typ = typ.Elem()
	}
	name := o.name
	if name == "" {
		name = typ.Name()
	}
	if name == "" {
		return nil, &SchemaError{Reason: "anonymous struct requires WithName"}
	}
	desc := o.description
	if desc == "" {
		if d, ok := input.(Describer); ok {
			desc = d.Description()
		}
	}
	if desc == "" {
		return nil, &SchemaError{Name: name, Reason: "description must not be empty; the model relies on it to choose the function"}
	}
	schemaMap, compiled, err := reflectSchema(typ, o.strict)
	if err != nil {
		return nil, err
	}
	b := &binding{
		desc:       &Descriptor{Name: name, Description: desc, Parameters: schemaMap},
		compiled:   compiled,
		allowExtra: o.extraArguments,
	}
	b.decode = func(raw []byte) (any, error) {
		inst, err := decodeInstance(raw)
		if err != nil {
			return nil, &ArgumentDecodeError{Function: name, Err: err}
		}
		m, ok := inst.(map[string]any)
		if !ok {
			return nil, &ValidationError{Function: name, Reason: "arguments must be a JSON object"}
		}
		if err := checkArguments(name, schemaMap, m, b.allowExtra); err != nil {
			return nil, err
		}
		if err := validateAgainstSchema(name, compiled, inst); err != nil {
			return nil, err
		}
		ptr := reflect.New(typ)
		if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
			return nil, &ArgumentDecodeError{Function: name, Err: err}
		}
		if err := validateCustom(ptr.Interface()); err != nil {
			if IsValidationError(err) {
				return nil, tagFunction(err, name)
			}
			return nil, &ValidationError{Function: name, Reason: err.Error()}
		}
		if wasPointer {
			return ptr.Interface(), nil
		}
		return ptr.Elem().Interface(), nil
	}
	return b, nil
}

// bindingFromFunction takes a foreign Function implementation as-is: its
// schema is deep-copied, cleaned, and compiled so extraction can validate
// arguments, but no typed construction is available.
func bindingFromFunction(f Function, o options) (*binding, error) {
	name := f.Name()
	if name == "" {
		return nil, &SchemaError{Reason: "function name must not be empty"}
	}
	desc := f.Description()
	if desc == "" {
		return nil, &SchemaError{Name: name, Reason: "description must not be empty; the model relies on it to choose the function"}
	}
	params := f.Parameters()
	if params == nil {
		return nil, &SchemaError{Name: name, Reason: "parameters schema must not be nil"}
	}
	schemaCopy, err := deepCopySchema(params)
	if err != nil {
		return nil, &SchemaError{Name: name, Reason: "cannot copy parameters schema: " + err.Error()}
	}
	if o.strict {
		applyStrictMode(schemaCopy)
	}
	stripSchemaIDs(schemaCopy)
	compiled, err := compileRawSchema(schemaCopy)
	if err != nil {
		return nil, &SchemaError{Name: name, Reason: "cannot compile parameters schema: " + err.Error()}
	}
	return &binding{
		desc:       &Descriptor{Name: name, Description: desc, Parameters: schemaCopy},
		compiled:   compiled,
		allowExtra: o.extraArguments,
		fn:         f,
	}, nil
}

// schemaFunction is the internal Function implementation shared by NewFunc
// and NewDynamicFunc.
type schemaFunction struct {
	name        string
	description string
	schema      map[string]any
	bind        *binding
}

func (f *schemaFunction) Name() string        { return f.name }
func (f *schemaFunction) Description() string { return f.description }

// Parameters returns a shallow copy of the JSON Schema (top-level keys only).
// Nested maps are shared; callers must not mutate them.
func (f *schemaFunction) Parameters() map[string]any { return maps.Clone(f.schema) }

func (f *schemaFunction) funcBinding() *binding { return f.bind }

// fnFunction adds the call pipeline for functions built from a Go handler.
type fnFunction struct {
	schemaFunction
	call func(ctx context.Context, argsJSON []byte) (json.RawMessage, error)
}

func (f *fnFunction) Call(ctx context.Context, argsJSON []byte) (json.RawMessage, error) {
	return f.call(ctx, argsJSON)
}

// NewFunc builds a Function from a typed Go function. Schema and validation
// are delegated to Extractor[T]: the argument struct's fields become the
// parameters, with per-field descriptions from the description tag and
// required-ness from default tags and omitempty. Name and description are
// required; the description is transmitted to the model and is load-bearing
// for invocation accuracy, so its absence is an error, not a warning.
// Call runs parse → validate → fn → marshal.
func NewFunc[T any, R any](
	name, description string,
	fn func(ctx context.Context, args T) (R, error),
	opts ...Option,
) (Function, error) {
	o := applyOptions(opts)
	if name == "" {
		return nil, &SchemaError{Reason: "function name must not be empty"}
	}
	if description == "" {
		return nil, &SchemaError{Name: name, Reason: "description must not be empty; the model relies on it to choose the function"}
	}
	if fn == nil {
		return nil, &SchemaError{Name: name, Reason: "handler must not be nil"}
	}
	ext, err := NewExtractor[T](opts...)
	if err != nil {
		return nil, err
	}
	f := &fnFunction{
		schemaFunction: schemaFunction{
			name:        name,
			description: description,
			schema:      ext.Schema(),
		},
	}
	f.bind = &binding{
		desc:       &Descriptor{Name: name, Description: description, Parameters: f.schema},
		compiled:   ext.compiled,
		allowExtra: o.extraArguments,
		fn:         f,
		decode: func(raw []byte) (any, error) {
			args, err := ext.ParseAndValidate(raw)
			if err != nil {
				return nil, tagFunction(err, name)
			}
			return args, nil
		},
	}
	f.call = func(ctx context.Context, argsJSON []byte) (json.RawMessage, error) {
		args, err := ext.ParseAndValidate(argsJSON)
		if err != nil {
			return nil, tagFunction(err, name)
		}
		res, err := fn(ctx, args)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("marshal %q result: %w", name, err)
		}
		return b, nil
	}
	return f, nil
}

// NewDynamicFunc creates a Function from a raw JSON Schema map. Useful for
// runtime API integration (e.g. OpenAPI/Swagger) where no Go type exists;
// extraction validates arguments against the schema but produces no typed
// value. The provided schemaMap is not mutated; a defensive copy is made
// before any modifications (e.g. WithStrict).
func NewDynamicFunc(name, description string, schemaMap map[string]any, opts ...Option) (Function, error) {
	o := applyOptions(opts)
	if name == "" {
		return nil, &SchemaError{Reason: "function name must not be empty"}
	}
	if description == "" {
		return nil, &SchemaError{Name: name, Reason: "description must not be empty; the model relies on it to choose the function"}
	}
	if schemaMap == nil {
		return nil, &SchemaError{Name: name, Reason: "dynamic schema map must not be nil"}
	}
	schemaCopy, err := deepCopySchema(schemaMap)
	if err != nil {
		return nil, &SchemaError{Name: name, Reason: "cannot copy schema map: " + err.Error()}
	}
	if o.strict {
		applyStrictMode(schemaCopy)
	}
	stripSchemaIDs(schemaCopy)
	compiled, err := compileRawSchema(schemaCopy)
	if err != nil {
		return nil, &SchemaError{Name: name, Reason: "cannot compile dynamic schema: " + err.Error()}
	}
	f := &schemaFunction{
		name:        name,
		description: description,
		schema:      schemaCopy,
	}
	f.bind = &binding{
		desc:       &Descriptor{Name: name, Description: description, Parameters: schemaCopy},
		compiled:   compiled,
		allowExtra: o.extraArguments,
		fn:         f,
	}
	return f, nil
}

// deepCopySchema copies a schema map through a JSON round trip so the
// caller's map is never mutated.
func deepCopySchema(m map[string]any) (map[string]any, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var (
	_ Function = (*schemaFunction)(nil)
	_ Function = (*fnFunction)(nil)
	_ Caller   = (*fnFunction)(nil)
)
