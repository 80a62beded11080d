package funcall

import (
	"errors"
	"fmt"
)

// Sentinel errors for funcall. Use errors.Is to check.
var (
	ErrSchema          = errors.New("schema normalization failed")
	ErrDecode          = errors.New("argument decode failed")
	ErrUnknownFunction = errors.New("unknown function")
	ErrValidation      = errors.New("validation failed")
)

// SchemaError reports an input shape the normalizer cannot reconcile:
// missing description, unsupported parameter type, duplicate name.
// Normalization fails fast; a malformed descriptor sent to a provider
// wastes a round trip.
type SchemaError struct {
	Name   string // descriptor or parameter name when known
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("invalid function schema %q: %s", e.Name, e.Reason)
	}
	return "invalid function schema: " + e.Reason
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// ArgumentDecodeError reports malformed JSON in a proposal's argument
// payload. Recoverable per proposal: extraction records it and moves on
// unless WithStrictExtraction is set.
type ArgumentDecodeError struct {
	Function string // proposal name when known
	Err      error
}

func (e *ArgumentDecodeError) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("malformed arguments for %q: %v", e.Function, e.Err)
	}
	return fmt.Sprintf("malformed arguments: %v", e.Err)
}

func (e *ArgumentDecodeError) Unwrap() error { return ErrDecode }

// UnknownFunctionError reports a proposal naming a function that is not
// bound. Always surfaced, never silently dropped.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function %q in proposal", e.Name)
}

func (e *UnknownFunctionError) Unwrap() error { return ErrUnknownFunction }

// ValidationError reports decoded arguments that fail the declared schema.
// It names the offending field and, for type mismatches, the expected and
// actual JSON types, so the message can go back to the model for
// self-correction. Do not expose stack traces or internal details.
type ValidationError struct {
	Function string
	Field    string
	Want     string // expected JSON type, set for type mismatches
	Got      string // actual JSON type, set for type mismatches
	Reason   string
}

func (e *ValidationError) Error() string {
	prefix := "invalid arguments"
	if e.Function != "" {
		prefix = fmt.Sprintf("invalid arguments for %q", e.Function)
	}
	switch {
	case e.Want != "":
		return fmt.Sprintf("%s: field %q expects %s, got %s", prefix, e.Field, e.Want, e.Got)
	case e.Field != "":
		return fmt.Sprintf("%s: field %q: %s", prefix, e.Field, e.Reason)
	default:
		return prefix + ": " + e.Reason
	}
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsSchemaError returns true if err is or wraps a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsDecodeError returns true if err is or wraps an ArgumentDecodeError.
func IsDecodeError(err error) bool {
	var de *ArgumentDecodeError
	return errors.As(err, &de)
}

// IsUnknownFunctionError returns true if err is or wraps an UnknownFunctionError.
func IsUnknownFunctionError(err error) bool {
	var ue *UnknownFunctionError
	return errors.As(err, &ue)
}

// IsValidationError returns true if err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// tagFunction fills in the function name on errors raised below the binder,
// where the proposal name is not known. The errors are freshly allocated per
// call, so mutating them here is safe.
func tagFunction(err error, name string) error {
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Function == "" {
		ve.Function = name
	}
	var de *ArgumentDecodeError
	if errors.As(err, &de) && de.Function == "" {
		de.Function = name
	}
	return err
}
