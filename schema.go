package funcall

import (
	"bytes"
	"encoding/json"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	jsv "github.com/santhosh-tekuri/jsonschema/v6"
)

var (
	customTypesMu sync.RWMutex
	customTypes   = make(map[reflect.Type]*jsonschema.Schema)
)

// RegisterType registers a custom Go type to be mapped to a JSON Schema type/format in generated schemas.
// emptyInstance is a value of the type to register (e.g. uuid.UUID{}, or MyMoney{}); it must not be nil.
// jsonType is the JSON Schema type (e.g. "string", "number"); it must not be empty.
// format is optional (e.g. "uuid", "decimal"). Registration is by reflect.TypeOf(emptyInstance).
// Pointer fields (*T) use the same mapping as T; call RegisterType once for the value type.
// Call RegisterType at application startup before the first NewFunc, Normalize, or NewExtractor.
func RegisterType(emptyInstance any, jsonType, format string) {
	if emptyInstance == nil {
		panic("funcall: RegisterType emptyInstance must not be nil")
	}
	if jsonType == "" {
		panic("funcall: RegisterType jsonType must not be empty")
	}
	t := reflect.TypeOf(emptyInstance)
	s := &jsonschema.Schema{Type: jsonType, Format: format}
	customTypesMu.Lock()
	defer customTypesMu.Unlock()
	if customTypes == nil {
		customTypes = make(map[reflect.Type]*jsonschema.Schema)
	}
	customTypes[t] = s
}

// customTypeFor returns the registered schema for t, or nil.
// Safe for concurrent use with RegisterType.
func customTypeFor(t reflect.Type) *jsonschema.Schema {
	customTypesMu.RLock()
	defer customTypesMu.RUnlock()
	if s, ok := customTypes[t]; ok {
		return &jsonschema.Schema{Type: s.Type, Format: s.Format}
	}
	return nil
}

// newReflector builds the schema reflector: root struct expanded in place,
// nested definitions inlined (no $ref/$defs; LLM providers require inline
// schemas), no $id, and no additionalProperties keyword in the wire schema.
// Undeclared-argument rejection happens at extraction, not in the schema.
func newReflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
		Mapper:                    customTypeFor,
	}
}

// reflectSchema produces a JSON Schema map and a compiled validator for the
// struct type typ. It is called once per normalized input. strict sets
// additionalProperties: false and all properties required for every object
// (OpenAI Structured Outputs).
func reflectSchema(typ reflect.Type, strict bool) (map[string]any, *jsv.Schema, error) {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, nil, &SchemaError{Reason: "parameters must be declared by a struct, got " + typ.Kind().String()}
	}
	if err := checkSupportedFields(typ); err != nil {
		return nil, nil, err
	}
	schema := newReflector().ReflectFromType(typ)
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, nil, &SchemaError{Reason: "cannot serialize reflected schema: " + err.Error()}
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(data, &schemaMap); err != nil {
		return nil, nil, &SchemaError{Reason: "cannot decode reflected schema: " + err.Error()}
	}
	enrichSchemaFromStructTags(schemaMap, typ)
	if strict {
		applyStrictMode(schemaMap)
	}
	stripSchemaIDs(schemaMap)
	compiled, err := compileRawSchema(schemaMap)
	if err != nil {
		return nil, nil, &SchemaError{Reason: "cannot compile schema: " + err.Error()}
	}
	return schemaMap, compiled, nil
}

// checkSupportedFields rejects parameter types that have no JSON Schema
// mapping, naming the offending field. Registered custom types pass
// regardless of kind.
func checkSupportedFields(typ reflect.Type) error {
	seen := make(map[reflect.Type]bool)
	var walk func(t reflect.Type, path string) error
	walk = func(t reflect.Type, path string) error {
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if customTypeFor(t) != nil {
			return nil
		}
		switch t.Kind() {
		case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
			return &SchemaError{Name: path, Reason: "unsupported parameter type " + t.String()}
		case reflect.Map:
			if t.Key().Kind() != reflect.String {
				return &SchemaError{Name: path, Reason: "map parameters require string keys, got " + t.Key().String()}
			}
			return walk(t.Elem(), path)
		case reflect.Slice, reflect.Array:
			return walk(t.Elem(), path)
		case reflect.Struct:
			if seen[t] {
				return nil
			}
			seen[t] = true
			for i := 0; i < t.NumField(); i++ {
				field := t.Field(i)
				if !field.IsExported() {
					continue
				}
				name := strings.Split(field.Tag.Get("json"), ",")[0]
				if name == "-" {
					continue
				}
				if name == "" {
					name = field.Name
				}
				if path != "" {
					name = path + "." + name
				}
				if err := walk(field.Type, name); err != nil {
					return err
				}
			}
			return nil
		default:
			return nil
		}
	}
	return walk(typ, "")
}

// enrichSchemaFromStructTags adds description, enum, and default from struct tags
// to root-level properties. typ may be a pointer; json tag (first part before
// comma) is used to match property keys. A default tag also removes the field
// from the required list (a parameter with a default is optional).
func enrichSchemaFromStructTags(schemaMap map[string]any, typ reflect.Type) {
	if schemaMap == nil || typ == nil {
		return
	}
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return
	}
	props, ok := schemaMap["properties"].(map[string]any)
	if !ok || len(props) == 0 {
		return
	}
	// Build json name -> field for root struct
	jsonToField := make(map[string]reflect.StructField)
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		jsonTag := strings.Split(field.Tag.Get("json"), ",")[0]
		if jsonTag == "" || jsonTag == "-" {
			continue
		}
		jsonToField[jsonTag] = field
	}
	for key, val := range props {
		prop, ok := val.(map[string]any)
		if !ok {
			continue
		}
		field, ok := jsonToField[key]
		if !ok {
			continue
		}
		if desc := field.Tag.Get("description"); desc != "" {
			prop["description"] = desc
		}
		if enumStr := field.Tag.Get("enum"); enumStr != "" {
			parts := strings.Split(enumStr, ",")
			enum := make([]any, len(parts))
			for i, p := range parts {
				enum[i] = strings.TrimSpace(p)
			}
			prop["enum"] = enum
		}
		if def := field.Tag.Get("default"); def != "" {
			typeName, _ := prop["type"].(string)
			prop["default"] = parseDefault(def, typeName)
			removeRequired(schemaMap, key)
		}
	}
}

// parseDefault converts a default tag value to the property's JSON type;
// unparseable values fall back to the raw string.
func parseDefault(raw, typeName string) any {
	switch typeName {
	case "integer":
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	case "number":
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case "boolean":
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	}
	return raw
}

// removeRequired drops key from the schema's root required list.
func removeRequired(schemaMap map[string]any, key string) {
	switch req := schemaMap["required"].(type) {
	case []any:
		out := make([]any, 0, len(req))
		for _, r := range req {
			if r != key {
				out = append(out, r)
			}
		}
		schemaMap["required"] = out
	case []string:
		schemaMap["required"] = slices.DeleteFunc(slices.Clone(req), func(r string) bool { return r == key })
	}
}

// requiredList returns the schema's required property names.
func requiredList(schemaMap map[string]any) []string {
	switch req := schemaMap["required"].(type) {
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return req
	}
	return nil
}

// walkSchema recursively visits every map node in the schema tree (including $defs and definitions).
func walkSchema(schemaMap map[string]any, visit func(map[string]any)) {
	if schemaMap == nil {
		return
	}
	visit(schemaMap)
	for _, val := range schemaMap {
		switch v := val.(type) {
		case map[string]any:
			walkSchema(v, visit)
		case []any:
			for _, item := range v {
				if m2, ok := item.(map[string]any); ok {
					walkSchema(m2, visit)
				}
			}
		}
	}
}

// applyStrictMode sets additionalProperties: false and makes every property
// required for every object in the schema (OpenAI Structured Outputs).
func applyStrictMode(schemaMap map[string]any) {
	walkSchema(schemaMap, func(n map[string]any) {
		if _, isObj := n["properties"]; isObj {
			n["additionalProperties"] = false
			if props, ok := n["properties"].(map[string]any); ok {
				keys := make([]string, 0, len(props))
				for k := range props {
					keys = append(keys, k)
				}
				slices.Sort(keys)
				required := make([]any, len(keys))
				for i, k := range keys {
					required[i] = k
				}
				if len(required) > 0 {
					n["required"] = required
				}
			}
		}
	})
}

// stripSchemaIDs removes $schema, id, and $id so the wire schema carries only
// the keys providers expect and compilation does not depend on them.
func stripSchemaIDs(schemaMap map[string]any) {
	walkSchema(schemaMap, func(n map[string]any) {
		delete(n, "id")
		delete(n, "$id")
		delete(n, "$schema")
	})
}

// compileRawSchema compiles a raw JSON Schema map into a validator. The map is not mutated.
func compileRawSchema(schemaMap map[string]any) (*jsv.Schema, error) {
	data, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, err
	}
	doc, err := jsv.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	c := jsv.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}

// decodeInstance parses raw JSON the way the validator expects
// (numbers as json.Number, not float64).
func decodeInstance(raw []byte) (any, error) {
	return jsv.UnmarshalJSON(bytes.NewReader(raw))
}
