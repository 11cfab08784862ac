// Package errors provides the typed error taxonomy of the irtune pipeline.
//
// Every failure surfaced by the pipeline carries a Kind so that callers can
// tell apart, for example, "no IR was found in the response" from "IR was
// found but is malformed" without parsing messages:
//
//	if errors.Is(err, apperrors.ValidationFailure) { ... }
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// Kind classifies an Error. A Kind is itself an error so it can be used as
// the target of errors.Is.
type Kind string

const (
	// GenerationFailure means the text-generation service errored or timed out.
	GenerationFailure Kind = "generation failure"
	// OptimizationFailed aborts a stage run; it wraps the underlying cause.
	OptimizationFailed Kind = "optimization failed"
	// ExtractionFailure means no sentinel-delimited span was found.
	ExtractionFailure Kind = "extraction failure"
	// ValidationFailure means a span was found but holds no function definition.
	ValidationFailure Kind = "validation failure"
	// CompileError means the toolchain rejected the IR text.
	CompileError Kind = "compile error"
	// NotCompiled means a compiled variant was invoked before a successful optimize.
	NotCompiled Kind = "not compiled"
	// VerificationMismatch means two variants produced different outputs.
	VerificationMismatch Kind = "verification mismatch"
	// SameBinding means a comparison was asked to compare a value with itself.
	SameBinding Kind = "same binding"
	// NotFound means a requested problem does not exist.
	NotFound Kind = "not found"
	// InvalidInput covers malformed arguments and requests.
	InvalidInput Kind = "invalid input"
)

// Error implements the error interface so a Kind can be passed to errors.Is.
func (k Kind) Error() string { return string(k) }

// Error represents a pipeline error with context and stack trace.
type Error struct {
	// Kind classifies the failure.
	Kind Kind
	// Op is the operation that was being performed when the error occurred.
	Op string
	// Component is the package or subsystem where the error occurred.
	Component string
	// Message is a human-readable description.
	Message string
	// Detail holds diagnostic payload such as raw model output or compiler
	// stderr. It is not part of Error() to keep log lines short.
	Detail string
	// Err is the underlying error, if any.
	Err error
	// Stack is the call stack at construction time.
	Stack []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Component != "" || e.Op != "" {
		b.WriteString(" [")
		b.WriteString(e.Component)
		if e.Component != "" && e.Op != "" {
			b.WriteString(".")
		}
		b.WriteString(e.Op)
		b.WriteString("]")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e != nil && e.Kind == k
}

// WithOperation sets the operation.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent sets the component.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// WithDetail attaches diagnostic payload.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// StackTrace returns the stack trace as a slice of strings.
func (e *Error) StackTrace() []string {
	return e.Stack
}

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{
		Kind:    kind,
		Message: msg,
		Stack:   getStackTrace(),
	}
}

// Errorf creates an error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Stack:   getStackTrace(),
	}
}

// Wrap wraps err as an error of the given kind. It returns nil if err is nil.
// An err that already carries the same kind is returned unchanged, so wrapping
// twice does not stack duplicate prefixes.
func Wrap(kind Kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) && e.Kind == kind && msg == "" {
		return e
	}
	return &Error{
		Kind:    kind,
		Message: msg,
		Err:     err,
		Stack:   getStackTrace(),
	}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" when err
// carries none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// DetailOf returns the first non-empty Detail in err's chain.
func DetailOf(err error) string {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Detail != "" {
			return e.Detail
		}
		err = stderrors.Unwrap(err)
	}
	return ""
}

// getStackTrace returns the current stack trace as a slice of strings.
func getStackTrace() []string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // skip runtime.Callers, getStackTrace and the constructor
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") && !strings.Contains(frame.File, "internal/errors") {
			stack = append(stack, fmt.Sprintf("%s\n\t%s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	return stack
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }
