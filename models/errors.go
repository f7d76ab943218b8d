package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the pipeline can produce.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindBinaryNotFound
	KindInvalidInput
	KindExecutionFailed
	KindOutputValidation
	KindProgressParseAnomaly
	KindCleanupFailed
	KindCancelled
)

var kindNames = map[ErrorKind]string{
	KindUnknown:              "unknown",
	KindBinaryNotFound:       "binary_not_found",
	KindInvalidInput:         "invalid_input",
	KindExecutionFailed:      "execution_failed",
	KindOutputValidation:     "output_validation",
	KindProgressParseAnomaly: "progress_parse_anomaly",
	KindCleanupFailed:        "cleanup_failed",
	KindCancelled:            "cancelled",
}

// String returns the snake_case name used in logs, metrics and API payloads.
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Sentinels for errors.Is. An *Error matches the sentinel of its kind.
var (
	ErrBinaryNotFound       = &Error{Kind: KindBinaryNotFound}
	ErrInvalidInput         = &Error{Kind: KindInvalidInput}
	ErrExecutionFailed      = &Error{Kind: KindExecutionFailed}
	ErrOutputValidation     = &Error{Kind: KindOutputValidation}
	ErrProgressParseAnomaly = &Error{Kind: KindProgressParseAnomaly}
	ErrCleanupFailed        = &Error{Kind: KindCleanupFailed}
	ErrCancelled            = &Error{Kind: KindCancelled}
)

// Error is the single error type crossing package boundaries.
//
// Stderr is only set for KindExecutionFailed and holds the tail of the
// tool's diagnostic output, untranslated.
type Error struct {
	Kind   ErrorKind
	Op     string
	Stderr string
	Err    error
}

// NewError wraps err with a kind and the operation that failed.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewExecutionError reports a tool that ran and exited unsuccessfully.
func NewExecutionError(op string, stderr string, err error) *Error {
	return &Error{Kind: KindExecutionFailed, Op: op, Stderr: stderr, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// StderrOf returns the captured diagnostic text of an execution failure, if any.
func StderrOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Stderr
	}
	return ""
}

// Invalidf is shorthand for an InvalidInput error with a formatted reason.
func Invalidf(op, format string, args ...any) *Error {
	return NewError(KindInvalidInput, op, fmt.Errorf(format, args...))
}
