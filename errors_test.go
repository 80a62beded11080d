package funcall

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors_Sentinels(t *testing.T) {
	t.Parallel()
	assert.ErrorIs(t, &SchemaError{Reason: "r"}, ErrSchema)
	assert.ErrorIs(t, &ArgumentDecodeError{Err: errors.New("bad")}, ErrDecode)
	assert.ErrorIs(t, &UnknownFunctionError{Name: "f"}, ErrUnknownFunction)
	assert.ErrorIs(t, &ValidationError{Reason: "r"}, ErrValidation)
}

func TestErrors_Messages(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `invalid function schema "f": duplicate function name`,
		(&SchemaError{Name: "f", Reason: "duplicate function name"}).Error())
	assert.Equal(t, "invalid function schema: input must not be nil",
		(&SchemaError{Reason: "input must not be nil"}).Error())
	assert.Equal(t, `unknown function "divide" in proposal`,
		(&UnknownFunctionError{Name: "divide"}).Error())
	assert.Equal(t, `malformed arguments for "f": unexpected end of JSON input`,
		(&ArgumentDecodeError{Function: "f", Err: errors.New("unexpected end of JSON input")}).Error())
	assert.Equal(t, `invalid arguments for "f": field "a" expects integer, got string`,
		(&ValidationError{Function: "f", Field: "a", Want: "integer", Got: "string"}).Error())
	assert.Equal(t, `invalid arguments for "f": field "b": missing required argument`,
		(&ValidationError{Function: "f", Field: "b", Reason: "missing required argument"}).Error())
	assert.Equal(t, "invalid arguments: arguments must be a JSON object",
		(&ValidationError{Reason: "arguments must be a JSON object"}).Error())
}

func TestErrors_Helpers(t *testing.T) {
	t.Parallel()
	assert.True(t, IsSchemaError(&SchemaError{Reason: "r"}))
	assert.False(t, IsSchemaError(errors.New("other")))
	assert.True(t, IsDecodeError(&ArgumentDecodeError{}))
	assert.True(t, IsUnknownFunctionError(&UnknownFunctionError{}))
	assert.True(t, IsValidationError(&ValidationError{}))
	assert.False(t, IsValidationError(nil))
}

func TestErrors_HelpersSeeWrappedChains(t *testing.T) {
	t.Parallel()
	wrapped := fmt.Errorf("extract proposal 2: %w", &ValidationError{Field: "a", Reason: "r"})
	assert.True(t, IsValidationError(wrapped))
	assert.ErrorIs(t, wrapped, ErrValidation)
	var ve *ValidationError
	require.ErrorAs(t, wrapped, &ve)
	assert.Equal(t, "a", ve.Field)
}

func TestTagFunction(t *testing.T) {
	t.Parallel()
	err := tagFunction(&ValidationError{Field: "a", Reason: "r"}, "multiply")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "multiply", ve.Function)

	// An already-set function name is kept
	err = tagFunction(&ValidationError{Function: "orig", Field: "a"}, "other")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "orig", ve.Function)

	err = tagFunction(&ArgumentDecodeError{Err: errors.New("bad")}, "multiply")
	var de *ArgumentDecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "multiply", de.Function)
}
