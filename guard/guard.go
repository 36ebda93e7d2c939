// Package guard is the narrow validation-error collaborator spec.md
// §4.3 carves out: the Script Bridge only needs to recognize a
// structured validation error and turn it into a 4xx JSON response;
// everything about how a script builds that error (schema rules,
// coercion, field-level messages) is this package's concern and out
// of the core's scope.
package guard

import "fmt"

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError carries one or more FieldErrors plus the status code
// the bridge should respond with (422 by default).
type ValidationError struct {
	Status int
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("validation failed: %s: %s", e.Fields[0].Field, e.Fields[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(e.Fields))
}

// New constructs a ValidationError defaulting to 422 Unprocessable
// Entity, the conventional status for semantically invalid input.
func New(fields ...FieldError) *ValidationError {
	return &ValidationError{Status: 422, Fields: fields}
}

// WithStatus overrides the default status code.
func (e *ValidationError) WithStatus(status int) *ValidationError {
	e.Status = status
	return e
}

// Require is a small helper a handler can call inline: if cond is
// false, it returns a single-field ValidationError; scripts composing
// several of these accumulate into one guard.New(...) call.
func Require(cond bool, field, message string) error {
	if cond {
		return nil
	}
	return New(FieldError{Field: field, Message: message})
}
