// Package mabosserr defines the error kinds surfaced by the simulation
// pipeline: ConfigError, CompileError, RuntimeError and IOError.
package mabosserr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies where in the pipeline an error originated.
type Kind string

const (
	KindConfig  Kind = "ConfigError"
	KindCompile Kind = "CompileError"
	KindRuntime Kind = "RuntimeError"
	KindIO      Kind = "IOError"
)

// Error is a typed error carrying a Kind and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is/errors.As see through to the cause.
func (e *Error) Unwrap() error { return e.Cause }

// NewConfigError reports a parse or capacity violation (>256 nodes, >20
// observables, malformed input).
func NewConfigError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

// NewCompileError reports a failure to lower a model into a kernel.
func NewCompileError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindCompile, Message: fmt.Sprintf(format, args...)}
}

// NewRuntimeError reports a NaN/Inf rate, RNG exhaustion, or allocation
// failure encountered while a simulation is running.
func NewRuntimeError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindRuntime, Message: fmt.Sprintf(format, args...)}
}

// NewIOError reports a failure writing a report.
func NewIOError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindIO, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause to a typed error of the given kind, adding a stack
// trace to the cause via github.com/pkg/errors so the original call site
// survives the conversion into our own error type.
func Wrap(cause error, kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   errors.WithStack(cause),
	}
}
