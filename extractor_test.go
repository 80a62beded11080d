package funcall

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validatableArgs struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

func (v validatableArgs) Validate() error {
	if v.Low > v.High {
		return errors.New("low must be <= high")
	}
	return nil
}

type pointerValidatableArgs struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (v *pointerValidatableArgs) Validate() error {
	if v.Min > v.Max {
		return errors.New("min must be <= max")
	}
	return nil
}

func TestNewExtractor_Success(t *testing.T) {
	t.Parallel()
	type Args struct {
		X int `json:"x"`
	}
	ext, err := NewExtractor[Args]()
	require.NoError(t, err)
	require.NotNil(t, ext)
	schema := ext.Schema()
	require.NotNil(t, schema)
	assert.Equal(t, "object", schema["type"])
}

func TestNewExtractor_Strict(t *testing.T) {
	t.Parallel()
	type Args struct {
		A string `json:"a"`
		B int    `json:"b"`
	}
	ext, err := NewExtractor[Args](WithStrict())
	require.NoError(t, err)
	schema := ext.Schema()
	obj := findSchemaObject(schema)
	require.NotNil(t, obj, "expected object with properties in schema")
	assert.Equal(t, false, obj["additionalProperties"])
	// Strict mode also makes all properties required, in deterministic order
	required, ok := obj["required"].([]any)
	require.True(t, ok, "strict schema must have required array")
	assert.Equal(t, []any{"a", "b"}, required)
}

func TestExtractor_ParseAndValidate_Success(t *testing.T) {
	t.Parallel()
	type Args struct {
		X int    `json:"x"`
		S string `json:"s"`
	}
	ext, err := NewExtractor[Args]()
	require.NoError(t, err)
	args, err := ext.ParseAndValidate([]byte(`{"x": 42, "s": "hello"}`))
	require.NoError(t, err)
	assert.Equal(t, 42, args.X)
	assert.Equal(t, "hello", args.S)
}

func TestExtractor_ParseAndValidate_InvalidJSON(t *testing.T) {
	t.Parallel()
	type Args struct {
		X int `json:"x"`
	}
	ext, err := NewExtractor[Args]()
	require.NoError(t, err)
	_, err = ext.ParseAndValidate([]byte(`{invalid`))
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestExtractor_ParseAndValidate_MissingRequired(t *testing.T) {
	t.Parallel()
	type Args struct {
		A string `json:"a"`
		B int    `json:"b"`
	}
	ext, err := NewExtractor[Args]()
	require.NoError(t, err)
	_, err = ext.ParseAndValidate([]byte(`{"a": "only"}`))
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "b", ve.Field, "error must name the missing field")
}

func TestExtractor_ParseAndValidate_TypeMismatch(t *testing.T) {
	t.Parallel()
	type Args struct {
		X int `json:"x"`
	}
	ext, err := NewExtractor[Args]()
	require.NoError(t, err)
	_, err = ext.ParseAndValidate([]byte(`{"x": "twelve"}`))
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "x", ve.Field)
	assert.Equal(t, "integer", ve.Want)
	assert.Equal(t, "string", ve.Got)
}

func TestExtractor_ParseAndValidate_UndeclaredField(t *testing.T) {
	t.Parallel()
	type Args struct {
		X int `json:"x"`
	}
	ext, err := NewExtractor[Args]()
	require.NoError(t, err)
	_, err = ext.ParseAndValidate([]byte(`{"x": 1, "y": 2}`))
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "y", ve.Field)

	// WithExtraArguments turns the rejection off
	loose, err := NewExtractor[Args](WithExtraArguments())
	require.NoError(t, err)
	args, err := loose.ParseAndValidate([]byte(`{"x": 1, "y": 2}`))
	require.NoError(t, err)
	assert.Equal(t, 1, args.X)
}

func TestExtractor_ParseAndValidate_FloatForInteger(t *testing.T) {
	t.Parallel()
	type Args struct {
		X int `json:"x"`
	}
	ext, err := NewExtractor[Args]()
	require.NoError(t, err)
	_, err = ext.ParseAndValidate([]byte(`{"x": 1.5}`))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestExtractor_ParseAndValidate_EnumViolation(t *testing.T) {
	t.Parallel()
	type Args struct {
		Unit string `json:"unit" enum:"celsius,fahrenheit"`
	}
	ext, err := NewExtractor[Args]()
	require.NoError(t, err)
	_, err = ext.ParseAndValidate([]byte(`{"unit": "kelvin"}`))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestExtractor_ParseAndValidate_Validatable(t *testing.T) {
	t.Parallel()
	ext, err := NewExtractor[validatableArgs]()
	require.NoError(t, err)
	// Valid: low <= high
	args, err := ext.ParseAndValidate([]byte(`{"low": 1, "high": 10}`))
	require.NoError(t, err)
	assert.Equal(t, 1, args.Low)
	assert.Equal(t, 10, args.High)
	// Invalid: low > high
	_, err = ext.ParseAndValidate([]byte(`{"low": 10, "high": 5}`))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestExtractor_ParseAndValidate_ValidatablePointerReceiver(t *testing.T) {
	t.Parallel()
	ext, err := NewExtractor[pointerValidatableArgs]()
	require.NoError(t, err)
	args, err := ext.ParseAndValidate([]byte(`{"min": 1, "max": 10}`))
	require.NoError(t, err)
	assert.Equal(t, 1, args.Min)
	// Invalid: min > max — pointer receiver Validate() is called
	_, err = ext.ParseAndValidate([]byte(`{"min": 10, "max": 5}`))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestExtractor_ParseAndValidate_PointerT(t *testing.T) {
	t.Parallel()
	ext, err := NewExtractor[*pointerValidatableArgs]()
	require.NoError(t, err)
	args, err := ext.ParseAndValidate([]byte(`{"min": 1, "max": 10}`))
	require.NoError(t, err)
	require.NotNil(t, args)
	assert.Equal(t, 1, args.Min)
	_, err = ext.ParseAndValidate([]byte(`{"min": 10, "max": 5}`))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

// countValidatable counts Validate() calls for double-invocation test.
type countValidatable struct {
	X int `json:"x"`
}

var layer2ValidateCallCount int

func (c countValidatable) Validate() error {
	layer2ValidateCallCount++
	return nil
}

// TestExtractor_ParseAndValidate_ValidatableNotCalledTwice ensures Layer-2 validation
// runs at most once per parse (no double call for pointer-receiver fallback).
func TestExtractor_ParseAndValidate_ValidatableNotCalledTwice(t *testing.T) {
	layer2ValidateCallCount = 0
	defer func() { layer2ValidateCallCount = 0 }()
	ext, err := NewExtractor[countValidatable]()
	require.NoError(t, err)
	_, err = ext.ParseAndValidate([]byte(`{"x": 1}`))
	require.NoError(t, err)
	assert.Equal(t, 1, layer2ValidateCallCount, "Validate() must be called exactly once")
}

func TestExtractor_Schema_ReturnsCopy(t *testing.T) {
	t.Parallel()
	type Args struct {
		X int `json:"x"`
	}
	ext, err := NewExtractor[Args]()
	require.NoError(t, err)
	s1 := ext.Schema()
	require.NotNil(t, s1)
	s1["mutated"] = true
	s2 := ext.Schema()
	_, ok := s2["mutated"]
	assert.False(t, ok, "mutating returned map must not affect subsequent Schema()")
}

func TestExtract_Generic(t *testing.T) {
	t.Parallel()
	invs, err := Extract([]Proposal{
		{ID: "1", Name: "multiply", Args: []byte(`{"a":3,"b":12}`)},
	})
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.Equal(t, "multiply", invs[0].Type)
	assert.Equal(t, map[string]any{"a": float64(3), "b": float64(12)}, invs[0].Args)
	assert.Nil(t, invs[0].Value)
	assert.NoError(t, invs[0].Err)
}

func TestExtract_PreservesOrderAndDuplicates(t *testing.T) {
	t.Parallel()
	invs, err := Extract([]Proposal{
		{ID: "1", Name: "b", Args: []byte(`{"n":1}`)},
		{ID: "2", Name: "a", Args: []byte(`{"n":2}`)},
		{ID: "3", Name: "b", Args: []byte(`{"n":3}`)},
	})
	require.NoError(t, err)
	require.Len(t, invs, 3)
	assert.Equal(t, []string{"b", "a", "b"}, []string{invs[0].Type, invs[1].Type, invs[2].Type})
	assert.Equal(t, float64(3), invs[2].Args["n"])
}

func TestExtract_MalformedCollected(t *testing.T) {
	t.Parallel()
	invs, err := Extract([]Proposal{
		{ID: "1", Name: "a", Args: []byte(`{"x":1}`)},
		{ID: "2", Name: "b", Args: []byte(`{broken`)},
		{ID: "3", Name: "c", Args: []byte(`{"x":3}`)},
	})
	require.NoError(t, err)
	require.Len(t, invs, 3)
	assert.NoError(t, invs[0].Err)
	require.Error(t, invs[1].Err)
	assert.True(t, IsDecodeError(invs[1].Err))
	assert.NoError(t, invs[2].Err, "one malformed proposal must not discard the others")
}

func TestExtract_MalformedStrict(t *testing.T) {
	t.Parallel()
	invs, err := Extract([]Proposal{
		{ID: "1", Name: "a", Args: []byte(`{"x":1}`)},
		{ID: "2", Name: "b", Args: []byte(`{broken`)},
		{ID: "3", Name: "c", Args: []byte(`{"x":3}`)},
	}, WithStrictExtraction())
	require.Error(t, err)
	assert.Nil(t, invs)
	assert.True(t, IsDecodeError(err))
}

func TestExtract_EmptyArgsMeansNoArguments(t *testing.T) {
	t.Parallel()
	invs, err := Extract([]Proposal{{ID: "1", Name: "ping", Args: nil}})
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.NoError(t, invs[0].Err)
	assert.Empty(t, invs[0].Args)
}

func TestExtract_Repair(t *testing.T) {
	t.Parallel()
	// Unquoted keys: typical damaged model output
	raw := []byte(`{a: 3, b: 12}`)
	invs, err := Extract([]Proposal{{ID: "1", Name: "multiply", Args: raw}})
	require.NoError(t, err)
	require.Error(t, invs[0].Err, "without repair the payload is malformed")

	invs, err = Extract([]Proposal{{ID: "1", Name: "multiply", Args: raw}}, WithRepair())
	require.NoError(t, err)
	require.NoError(t, invs[0].Err)
	assert.Equal(t, float64(3), invs[0].Args["a"])
	assert.Equal(t, float64(12), invs[0].Args["b"])
}

type proposalReply struct {
	proposals []Proposal
}

func (r proposalReply) Proposals() []Proposal { return r.proposals }

func TestExtractFrom_Source(t *testing.T) {
	t.Parallel()
	src := proposalReply{proposals: []Proposal{
		{ID: "1", Name: "a", Args: []byte(`{"x":1}`)},
	}}
	invs, err := ExtractFrom(src)
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.Equal(t, "a", invs[0].Type)
}
