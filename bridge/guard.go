package bridge

import (
	"errors"

	"github.com/roverlang/rover/guard"
	"github.com/roverlang/rover/httpcore"
	"github.com/roverlang/rover/value"
)

// AsValidationError unwraps err into a *guard.ValidationError if that
// is what it (or something it wraps) is.
func AsValidationError(err error) (*guard.ValidationError, bool) {
	var ve *guard.ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// validationErrorResponse converts a guard.ValidationError into the
// 4xx JSON response spec.md §4.3 describes: "expose the ability for
// handlers to convert an exception carrying a structured
// validation-error value into a 4xx JSON response".
func validationErrorResponse(ve *guard.ValidationError, respBuf []byte) httpcore.Response {
	t := value.NewTable()
	fields := value.NewTable()
	for _, f := range ve.Fields {
		fields.SetField(f.Field, value.String(f.Message))
	}
	t.SetField("error", value.String("validation failed"))
	t.SetField("fields", value.TableValue(fields))

	body, err := value.NewEncoder().Encode(respBuf[:0], value.TableValue(t))
	if err != nil {
		return httpcore.Response{Status: ve.Status, ContentType: "application/json; charset=utf-8",
			Body: []byte(`{"error":"validation failed"}`)}
	}
	return httpcore.Response{Status: ve.Status, ContentType: "application/json; charset=utf-8", Body: body}
}
