package apihttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// bodyField keys errors about the request body as a whole.
const bodyField = "body"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// RequestError is a rejected request: the status to answer with and the
// per-field messages for the body.
type RequestError struct {
	Status int
	Fields FieldErrors
}

func (e *RequestError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], "; "))
	}
	return fmt.Sprintf("request rejected (%d): %s", e.Status, strings.Join(parts, ", "))
}

func rejectBody(status int, msg string) *RequestError {
	fe := FieldErrors{}
	fe.Add(bodyField, msg)
	return &RequestError{Status: status, Fields: fe}
}

// DecodeValidationRequest reads and validates the JSON body. The result is a
// function of the request alone.
func DecodeValidationRequest(r *http.Request) (ValidationRequest, *RequestError) {
	var req ValidationRequest

	if !isJSON(r.Header.Get("Content-Type")) {
		return req, rejectBody(http.StatusUnsupportedMediaType, "expected request with `Content-Type: application/json`")
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, decodeError(err)
	}

	if err := validate.Struct(req); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			return req, rejectBody(http.StatusBadRequest, err.Error())
		}
		fe := FieldErrors{}
		for _, v := range ves {
			fe.Add(v.Field(), fieldMessage(v))
		}
		return req, &RequestError{Status: http.StatusBadRequest, Fields: fe}
	}
	return req, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fe.Field() + " must not be empty"
	default:
		return fe.Field() + " is invalid"
	}
}

func decodeError(err error) *RequestError {
	var (
		tooLarge *http.MaxBytesError
		typeErr  *json.UnmarshalTypeError
		syntax   *json.SyntaxError
	)
	switch {
	case errors.As(err, &tooLarge):
		return rejectBody(http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			fe := FieldErrors{}
			fe.Add(bodyField, "expected a JSON object")
			return &RequestError{Status: http.StatusUnprocessableEntity, Fields: fe}
		}
		fe := FieldErrors{}
		fe.Add(field, fmt.Sprintf("%s must be a %s", field, typeErr.Type.Kind()))
		return &RequestError{Status: http.StatusUnprocessableEntity, Fields: fe}
	case errors.As(err, &syntax):
		return rejectBody(http.StatusBadRequest, "request body is not valid JSON")
	case errors.Is(err, io.EOF):
		return rejectBody(http.StatusBadRequest, "request body is empty")
	case errors.Is(err, io.ErrUnexpectedEOF):
		return rejectBody(http.StatusBadRequest, "request body ended unexpectedly")
	default:
		return rejectBody(http.StatusBadRequest, "unreadable request body")
	}
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || (strings.HasPrefix(mt, "application/") && strings.HasSuffix(mt, "+json"))
}
