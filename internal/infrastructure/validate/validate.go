package validate

import (
	"fmt"
	"strings"
)

// FieldError field error to be nested by other errors
type FieldError struct {
	Domain string `json:"domain"`
	Reason string `json:"reason"`
}

// NewFieldError create new field error
func NewFieldError(domain string, reason string) *FieldError {
	return &FieldError{domain, reason}
}

// Validator .
type Validator interface {
	Struct(s interface{}) []*FieldError
	Empty(varName string, s interface{}) []*FieldError
}

// ValidationError wraps the field errors of a rejected input
type ValidationError struct {
	Fields []*FieldError
}

func (ve *ValidationError) Error() string {
	msg := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		msg = append(msg, fmt.Sprintf("%s: %s", f.Domain, f.Reason))
	}
	return "invalid input: " + strings.Join(msg, "; ")
}

// Check runs v.Struct and folds the result into a *ValidationError
func Check(v Validator, s interface{}) error {
	if fields := v.Struct(s); len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
