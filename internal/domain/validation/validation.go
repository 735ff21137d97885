// Package validation holds the input-validation error shared by the domain
// packages. The HTTP layer renders it as a 400 with field details.
package validation

import "strings"

// FieldError describes a problem with a single input field.
type FieldError struct {
	Field   string
	Message string
}

// Error is returned when request input is missing, malformed or violates a
// business precondition that the caller can fix.
type Error struct {
	Message string
	Details []FieldError
}

// New creates a validation error with optional field details.
func New(message string, details ...FieldError) *Error {
	return &Error{Message: message, Details: details}
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	fields := make([]string, len(e.Details))
	for i, d := range e.Details {
		fields[i] = d.Field
	}
	return e.Message + ": " + strings.Join(fields, ", ")
}

// Collector accumulates field errors; Err returns nil when nothing was added.
type Collector struct {
	details []FieldError
}

// Required records a field error when value is blank after trimming.
func (c *Collector) Required(field, value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		c.details = append(c.details, FieldError{Field: field, Message: "is required"})
	}
	return v
}

// Add records an arbitrary field error.
func (c *Collector) Add(field, message string) {
	c.details = append(c.details, FieldError{Field: field, Message: message})
}

// Err returns a validation error with the collected details, or nil.
func (c *Collector) Err(message string) error {
	if len(c.details) == 0 {
		return nil
	}
	return New(message, c.details...)
}
