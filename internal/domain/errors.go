package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrorNotFound        ErrorKind = "NOT_FOUND"
	ErrorAmbiguousResult ErrorKind = "AMBIGUOUS_RESULT"
	ErrorFieldMissing    ErrorKind = "FIELD_MISSING"
	ErrorTypeMismatch    ErrorKind = "TYPE_MISMATCH"
	ErrorStorage         ErrorKind = "STORAGE_ERROR"
	ErrorValidation      ErrorKind = "VALIDATION_ERROR"
)

// Error is the failure type returned by the repository and use case layers.
// Field and Item are set for decode failures and name the offending attribute
// and the raw record it was read from.
type Error struct {
	Kind   ErrorKind
	Reason string
	Field  string
	Item   any
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s (%s)", e.Kind, e.Reason)
	if e.Field != "" {
		msg = fmt.Sprintf("%s field %q", msg, e.Field)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewError(kind ErrorKind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
