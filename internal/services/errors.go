package services

import (
	"errors"
	"fmt"

	"github.com/sudo-adi/bs-server-sub001/internal/models"
)

// internalErrorMessage replaces the detail of unexpected failures in
// anything returned to a caller.
const internalErrorMessage = "internal server error"

// ErrorKind classifies failures raised by the engine.
type ErrorKind string

const (
	KindNotFound               ErrorKind = "NOT_FOUND"
	KindInvalidStageTransition ErrorKind = "INVALID_STAGE_TRANSITION"
	KindValidation             ErrorKind = "VALIDATION"
	KindConflict               ErrorKind = "CONFLICT"
	KindUnauthorized           ErrorKind = "UNAUTHORIZED"
	KindUnexpected             ErrorKind = "UNEXPECTED"
)

// Error is the typed error returned across the engine boundary.
type Error struct {
	Kind    ErrorKind
	Message string
	// Field names the offending input for validation errors.
	Field string
	// From and To are set for invalid stage transitions.
	From models.ProjectStage
	To   models.ProjectStage
	// Details carries structured context, e.g. conflicting assignments.
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindUnexpected {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func NewNotFoundError(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found: %s", entity, id)}
}

func NewValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// NewRequiredFieldError reports a missing mandatory field by name.
func NewRequiredFieldError(field string) *Error {
	return NewValidationError(field, fmt.Sprintf("%s is required", field))
}

func NewInvalidStageError(action string, current, required models.ProjectStage) *Error {
	return &Error{
		Kind:    KindInvalidStageTransition,
		Message: fmt.Sprintf("cannot %s: project is in %s stage, required %s", action, current, required),
		From:    current,
		To:      required,
	}
}

func NewConflictError(message string, details interface{}) *Error {
	return &Error{Kind: KindConflict, Message: message, Details: details}
}

func NewUnauthorizedError(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// NewUnexpectedError wraps a persistence or infrastructure failure.
func NewUnexpectedError(op string, err error) *Error {
	return &Error{Kind: KindUnexpected, Message: op, Err: err}
}

// KindOf returns the kind of err, or KindUnexpected for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool   { return KindOf(err) == KindConflict }
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

func IsInvalidStageTransition(err error) bool {
	return KindOf(err) == KindInvalidStageTransition
}

// asEngineError keeps engine errors intact and wraps anything else as unexpected.
func asEngineError(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewUnexpectedError(op, err)
}
