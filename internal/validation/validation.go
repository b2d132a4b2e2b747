package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid marks input rejected by field validation.
var ErrInvalid = errors.New("validation failed")

var fieldValidator = validator.New()

// FieldError describes a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error aggregates every rejected field of an input payload.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	messages := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		messages = append(messages, field.Field+": "+field.Message)
	}
	return fmt.Sprintf("%v: %s", ErrInvalid, strings.Join(messages, "; "))
}

func (e *Error) Unwrap() error {
	return ErrInvalid
}

// Collector accumulates field errors while a payload is checked.
type Collector struct {
	fields []FieldError
}

// Reject records a failed field.
func (c *Collector) Reject(field, message string) {
	c.fields = append(c.fields, FieldError{Field: field, Message: message})
}

// Err returns an *Error when any field was rejected, nil otherwise.
func (c *Collector) Err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &Error{Fields: append([]FieldError(nil), c.fields...)}
}

// IsURL reports whether value is an absolute URL.
func IsURL(value string) bool {
	return fieldValidator.Var(value, "url") == nil
}

// IsEmail reports whether value is a well-formed email address.
func IsEmail(value string) bool {
	return fieldValidator.Var(value, "email") == nil
}
