// Package common defines shared constants and sentinel errors used across
// the server and the CLI client. Callers should use errors.Is to match
// these values; services wrap them with a more specific message.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors. Each maps to one response category at the
	// transport boundary.
	ErrorValidation   = errors.New("validation error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorInternal     = errors.New("internal error")

	// Auth errors (invalid, expired or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)

// FieldError reports a problem with one input attribute.
type FieldError struct {
	Attr   string
	Detail string
}

// ValidationError collects field-level problems. It matches ErrorValidation
// under errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrorValidation.Error()
	}
	return ErrorValidation.Error() + ": " + e.Fields[0].Attr + ": " + e.Fields[0].Detail
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrorValidation
}

// Add appends a field problem.
func (e *ValidationError) Add(attr, detail string) {
	e.Fields = append(e.Fields, FieldError{Attr: attr, Detail: detail})
}

// OrNil returns e when it holds at least one field problem.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ConflictError reports a uniqueness violation on one attribute. It matches
// ErrorAlreadyExists under errors.Is.
type ConflictError struct {
	Attr   string
	Detail string
}

func (e *ConflictError) Error() string {
	return ErrorAlreadyExists.Error() + ": " + e.Attr
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrorAlreadyExists
}
