package workflow

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable category of a workflow failure.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "not_found"
	KindForbidden          ErrorKind = "forbidden"
	KindInvalidTransition  ErrorKind = "invalid_transition"
	KindVersionConflict    ErrorKind = "version_conflict"
	KindValidation         ErrorKind = "validation_error"
	KindStorageUnavailable ErrorKind = "storage_unavailable"
)

// Error is returned by the engine for every failed operation.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind against the bare sentinels below,
// so errors.Is(err, ErrVersionConflict) works for detailed errors too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Retryable is true only for version conflicts: the caller re-reads and tries again.
func (e *Error) Retryable() bool { return e.Kind == KindVersionConflict }

var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition}
	ErrVersionConflict    = &Error{Kind: KindVersionConflict}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}

	// ErrAlreadyExists is returned by stores when Create hits an existing id.
	ErrAlreadyExists = errors.New("workflow: item already exists")
)

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func Forbiddenf(format string, args ...interface{}) *Error {
	return newError(KindForbidden, format, args...)
}

func Validationf(format string, args ...interface{}) *Error {
	return newError(KindValidation, format, args...)
}

func invalidTransition(from Status, action Action) *Error {
	return newError(KindInvalidTransition, "action %s is not valid from status %s", action, from)
}

func versionConflict(id string, expected, actual int64) *Error {
	if actual == 0 {
		return newError(KindVersionConflict, "item %s was modified concurrently (expected version %d)", id, expected)
	}
	return newError(KindVersionConflict, "item %s is at version %d, request expected %d", id, actual, expected)
}

// Unavailable wraps a storage failure that could not be recovered.
func Unavailable(err error) *Error {
	var we *Error
	if errors.As(err, &we) && we.Kind == KindStorageUnavailable {
		return we
	}
	return &Error{Kind: KindStorageUnavailable, Message: "content store unavailable", Err: err}
}

// KindOf extracts the error kind, or "" when err is not a workflow error.
func KindOf(err error) ErrorKind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return ""
}

// IsRetryable reports whether the caller may re-read and retry.
func IsRetryable(err error) bool {
	var we *Error
	return errors.As(err, &we) && we.Retryable()
}
