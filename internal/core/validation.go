package core

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// FieldError is a problem with a single form field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects field problems of one input. A request carrying
// one is not applied.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// For returns the first message recorded for field, or "".
func (e *ValidationError) For(field string) string {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message
		}
	}
	return ""
}

// NewValidationError builds an error for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Validator accumulates field errors. Only the first error per field is kept.
type Validator struct {
	fields []FieldError
	seen   map[string]bool
}

func (v *Validator) Add(field, message string) {
	if v.seen == nil {
		v.seen = make(map[string]bool)
	}
	if v.seen[field] {
		return
	}
	v.seen[field] = true
	v.fields = append(v.fields, FieldError{Field: field, Message: message})
}

func (v *Validator) Required(field, value, label string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, label+" is required")
	}
}

func (v *Validator) MaxLen(field, value string, max int, message string) {
	if utf8.RuneCountInString(value) > max {
		v.Add(field, message)
	}
}

// MaxBytes limits the encoded length, for values with byte-based limits
// such as bcrypt input.
func (v *Validator) MaxBytes(field, value string, max int, message string) {
	if len(value) > max {
		v.Add(field, message)
	}
}

func (v *Validator) MinLen(field, value string, min int, message string) {
	if utf8.RuneCountInString(value) < min {
		v.Add(field, message)
	}
}

func (v *Validator) Email(field, value string) {
	if value == "" {
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(value[strings.LastIndex(value, "@")+1:], ".") {
		v.Add(field, "Invalid email address")
	}
}

func (v *Validator) Equal(field, a, b, message string) {
	if a != b {
		v.Add(field, message)
	}
}

// Err returns nil when no field failed.
func (v *Validator) Err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}
