package abi

import "fmt"

// ErrorKind is a stable, machine readable codec failure category.
type ErrorKind string

const (
	MalformedData      ErrorKind = "MALFORMED_DATA"
	UnsupportedType    ErrorKind = "UNSUPPORTED_TYPE"
	ParamCountMismatch ErrorKind = "PARAM_COUNT_MISMATCH"
	TypeMismatch       ErrorKind = "TYPE_MISMATCH"
)

// CodecError is returned for any client input the codec cannot handle.
type CodecError struct {
	kind ErrorKind
	msg  string
	err  error
}

func (e *CodecError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *CodecError) Kind() string {
	return string(e.kind)
}

func (e *CodecError) Unwrap() error {
	return e.err
}

// Is matches codec errors by kind, so errors.Is(err, &CodecError{kind: TypeMismatch})
// style checks can be written with NewError.
func (e *CodecError) Is(target error) bool {
	t, ok := target.(*CodecError)
	return ok && t.msg == "" && t.kind == e.kind
}

// NewError builds a codec error of the given kind. An empty message yields a
// sentinel usable with errors.Is.
func NewError(kind ErrorKind, format string, args ...interface{}) *CodecError {
	return &CodecError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

var (
	ErrMalformedData      = NewError(MalformedData, "")
	ErrUnsupportedType    = NewError(UnsupportedType, "")
	ErrParamCountMismatch = NewError(ParamCountMismatch, "")
	ErrTypeMismatch       = NewError(TypeMismatch, "")
)

func unsupportedType(format string, args ...interface{}) *CodecError {
	return NewError(UnsupportedType, format, args...)
}

func malformed(err error, format string, args ...interface{}) *CodecError {
	e := NewError(MalformedData, format, args...)
	e.err = err
	return e
}
