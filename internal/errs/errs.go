// Package errs classifies failures raised while compiling the schema and
// resolving queries, and maps them onto the errorType reported to clients.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages.
var (
	ErrNotIntrospectable = errors.New("class carries no exported property metadata")
	ErrUnknownType       = errors.New("unknown type")
	ErrUnresolvedType    = errors.New("no schema type for runtime instance")
	ErrCoercion          = errors.New("scalar coercion failed")
	ErrInvalidSchema     = errors.New("invalid schema")
)

// Class groups errors by how a caller should react to them.
type Class int

const (
	// Internal is the default for unclassified errors.
	Internal Class = iota
	// Invalid means the request named something that does not exist or does not fit.
	Invalid
	// Coercion means a value could not be converted to or from a scalar.
	Coercion
	// Resolution means a runtime instance has no schema type.
	Resolution
)

func (c Class) String() string {
	switch c {
	case Invalid:
		return "invalid"
	case Coercion:
		return "coercion"
	case Resolution:
		return "resolution"
	default:
		return "internal"
	}
}

// Wire error types.
const (
	TypeInvalidSyntax         = "InvalidSyntax"
	TypeValidation            = "ValidationError"
	TypeOperationNotSupported = "OperationNotSupported"
	TypeDataFetching          = "DataFetchingException"
	TypeCoercion              = "CoercionError"
	TypeResolution            = "TypeResolutionError"
)

// ClassifiedError carries a Class alongside the operation that failed.
type ClassifiedError struct {
	Class Class
	Op    string
	Err   error
}

func (e *ClassifiedError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

func wrap(class Class, err error, op string) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Class: class, Op: op, Err: err}
}

// WrapInvalid marks err as caused by bad input.
func WrapInvalid(err error, op string) error { return wrap(Invalid, err, op) }

// WrapCoercion marks err as a scalar coercion failure.
func WrapCoercion(err error, op string) error { return wrap(Coercion, err, op) }

// WrapResolution marks err as a runtime type resolution failure.
func WrapResolution(err error, op string) error { return wrap(Resolution, err, op) }

// Invalidf builds an Invalid error wrapping sentinel with a formatted message.
func Invalidf(sentinel error, op, format string, args ...any) error {
	return WrapInvalid(fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)), op)
}

// Classify reports the class of err. Sentinels are classified even when they
// were not wrapped explicitly.
func Classify(err error) Class {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	switch {
	case errors.Is(err, ErrUnknownType):
		return Invalid
	case errors.Is(err, ErrCoercion):
		return Coercion
	case errors.Is(err, ErrUnresolvedType):
		return Resolution
	}
	return Internal
}

// ErrorType maps err onto the errorType reported in GraphQL responses.
func ErrorType(err error) string {
	switch Classify(err) {
	case Invalid:
		return TypeValidation
	case Coercion:
		return TypeCoercion
	case Resolution:
		return TypeResolution
	default:
		return TypeDataFetching
	}
}
