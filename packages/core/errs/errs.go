// Package errs defines the error taxonomy shared by the extension core and the
// request pipeline. Every error surfaced to a caller carries a stable Kind so it
// can be branched on programmatically.
package errs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies an error.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindDuplicateExtension Kind = "duplicate_extension"
	KindStateMutation      Kind = "state_mutation"
	KindInvalidModifier    Kind = "invalid_modifier"
	KindAlreadyInitialized Kind = "already_initialized"
	KindHookExecution      Kind = "hook_execution"
	KindTimeout            Kind = "timeout"
	KindParse              Kind = "parse"
	KindTransport          Kind = "transport"
	KindRequest            Kind = "request"
	KindAborted            Kind = "aborted"
)

// Error is the concrete error type for every kind except hook execution.
type Error struct {
	Kind    Kind
	Message string

	// Extension names the extension the error is attributed to, if any.
	Extension string

	// Hook names the lifecycle phase the error happened in, if any.
	Hook string

	// Status is the HTTP status code for request errors.
	Status int

	// Timeout is the configured duration for timeout errors.
	Timeout time.Duration

	// Data holds the decoded response body for request errors.
	Data any

	Cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Extension != "" {
		fmt.Fprintf(&b, " [%s]", e.Extension)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Kind == KindTimeout && e.Timeout > 0 {
		fmt.Fprintf(&b, " after %s", e.Timeout)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil && e.Cause.Error() != e.Message {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Validation reports a bad extension descriptor or configuration.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// DuplicateExtension reports a second registration of name.
func DuplicateExtension(name string) *Error {
	return &Error{
		Kind:      KindDuplicateExtension,
		Message:   fmt.Sprintf("extension %q is already registered", name),
		Extension: name,
	}
}

// StateMutation attributes a failed state mutation to an extension.
func StateMutation(extension string, cause error) *Error {
	return &Error{
		Kind:      KindStateMutation,
		Message:   "state mutation failed",
		Extension: extension,
		Cause:     cause,
	}
}

// InvalidModifier reports a nil state modifier.
func InvalidModifier(extension string) *Error {
	return &Error{
		Kind:      KindInvalidModifier,
		Message:   "state modifier must be a function",
		Extension: extension,
	}
}

// AlreadyInitialized reports a second initialization.
func AlreadyInitialized() *Error {
	return New(KindAlreadyInitialized, "extensions are already initialized")
}

// Timeout reports a call that exceeded its deadline.
func Timeout(d time.Duration, cause error) *Error {
	return &Error{Kind: KindTimeout, Message: "request timed out", Timeout: d, Cause: cause}
}

// Aborted reports a call cancelled by its caller.
func Aborted(cause error) *Error {
	return &Error{Kind: KindAborted, Message: "request aborted", Cause: cause}
}

// Transport reports a network failure.
func Transport(cause error) *Error {
	return &Error{Kind: KindTransport, Message: "transport failed", Cause: cause}
}

// Parse reports a response body that could not be decoded.
func Parse(contentType string, cause error) *Error {
	return &Error{Kind: KindParse, Message: fmt.Sprintf("failed to decode %q body", contentType), Cause: cause}
}

// Request reports a response whose status was rejected.
func Request(status int, statusText string, data any) *Error {
	msg := statusText
	if msg == "" {
		msg = fmt.Sprintf("unexpected status %d", status)
	}
	return &Error{Kind: KindRequest, Message: msg, Status: status, Data: data}
}

// Failure is one extension's failed handler invocation.
type Failure struct {
	Extension string
	Err       error
}

// HookExecutionError aggregates every handler failure of one hook execution.
type HookExecutionError struct {
	Hook     string
	Failures []Failure
}

func (e *HookExecutionError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Extension, f.Err)
	}
	return fmt.Sprintf("hook %q failed: %s", e.Hook, strings.Join(parts, "; "))
}

// Kind returns KindHookExecution.
func (e *HookExecutionError) Kind() Kind {
	return KindHookExecution
}

func (e *HookExecutionError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.Err
	}
	return out
}

// Extensions lists the names of the failing extensions in failure order.
func (e *HookExecutionError) Extensions() []string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Extension
	}
	return names
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or "" when none is classified.
func KindOf(err error) Kind {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			return e.Kind
		case *HookExecutionError:
			return KindHookExecution
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
