package request

import (
	"errors"
	"fmt"

	"contract-engine/chain"
)

const (
	AlreadySet = "ALREADY_SET"
	Validation = "VALIDATION"
	NotFound   = "NOT_FOUND"
	Internal   = "INTERNAL"
)

// Error is a request level failure with a stable kind.
type Error struct {
	kind string
	msg  string
}

func (e *Error) Error() string {
	if e.msg == "" {
		return e.kind
	}
	return e.kind + ": " + e.msg
}

func (e *Error) Kind() string {
	return e.kind
}

// Is matches request errors by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.kind == e.kind
}

var (
	// ErrAlreadySet is returned when a signature or transaction hash is
	// attached to a request that already has one.
	ErrAlreadySet = &Error{kind: AlreadySet}
	ErrNotFound   = &Error{kind: NotFound}
	ErrValidation = &Error{kind: Validation}
)

func validationError(format string, args ...interface{}) *Error {
	return &Error{kind: Validation, msg: fmt.Sprintf(format, args...)}
}

func alreadySet(field string) *Error {
	return &Error{kind: AlreadySet, msg: field + " is already set"}
}

type kinded interface {
	Kind() string
}

// ErrorKind returns the machine readable kind of err: a codec kind, a
// chain kind, SIGNATURE_INVALID or one of the request kinds. Unknown
// errors are INTERNAL.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var chainErr *chain.Error
	if errors.As(err, &chainErr) {
		return string(chainErr.Kind)
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return Internal
}
