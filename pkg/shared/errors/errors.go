// Package errors provides the small set of wrapped-error helpers used
// throughout the supervisor so callers can format consistent messages
// without losing the underlying cause for errors.Is/errors.As.
package errors

import (
	"fmt"
	"strings"
)

// Kind is the closed taxonomy of failure classes a probe, session step,
// or subsystem can report. Kinds are attached to outcomes as data, not
// modeled as distinct Go error types, so scoring and classification code
// can switch on a single field instead of type-asserting errors.
type Kind string

const (
	KindNetwork           Kind = "networkError"
	KindTimeout           Kind = "timeout"
	KindStatusMismatch    Kind = "statusMismatch"
	KindBreakerOpen       Kind = "breakerOpen"
	KindSubprocessTimeout Kind = "subprocessTimeout"
	KindSubprocessFailure Kind = "subprocessFailure"
	KindParseError        Kind = "parseError"
	KindSinkWriteError    Kind = "sinkWriteError"
	KindConfigError       Kind = "configError"
	KindShutdownRequested Kind = "shutdownRequested"
)

// OperationError describes a failed operation with enough context to log
// and debug without re-deriving it from a bare error string.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("failed to %s", e.Operation)
	if e.Component != "" {
		msg += fmt.Sprintf(", component: %s", e.Component)
	}
	if e.Resource != "" {
		msg += fmt.Sprintf(", resource: %s", e.Resource)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(", cause: %s", e.Cause.Error())
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// FailedTo builds a minimal wrapped error: "failed to <action>[, cause: <cause>]".
func FailedTo(action string, cause error) error {
	return &OperationError{Operation: action, Cause: cause}
}

// FailedToWithDetails builds a wrapped error carrying component/resource
// context in addition to the action and cause.
func FailedToWithDetails(action, component, resource string, cause error) error {
	return &OperationError{
		Operation: action,
		Component: component,
		Resource:  resource,
		Cause:     cause,
	}
}

// Wrapf prefixes err with a formatted message, returning nil for a nil err.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// DatabaseError is unused by this service today (it owns no relational
// store) but kept as a thin wrapper for any future sink needing one.
func DatabaseError(action string, cause error) error {
	return FailedToWithDetails(action, "database", "", cause)
}

// NetworkError reports a failed network operation against an endpoint.
func NetworkError(action, endpoint string, cause error) error {
	return FailedToWithDetails(action, "network", endpoint, cause)
}

// ValidationError reports a field-level validation failure.
func ValidationError(field, reason string) error {
	return fmt.Errorf("validation failed for field %s: %s", field, reason)
}

// ConfigurationError reports an invalid configuration setting.
func ConfigurationError(setting, reason string) error {
	return fmt.Errorf("configuration error for setting %s: %s", setting, reason)
}

// TimeoutError reports an operation that exceeded its deadline.
func TimeoutError(action, duration string) error {
	return fmt.Errorf("timeout while %s after %s", action, duration)
}

// AuthenticationError reports a failed authentication attempt.
func AuthenticationError(reason string) error {
	return fmt.Errorf("authentication failed: %s", reason)
}

// AuthorizationError reports a denied action on a resource.
func AuthorizationError(action, resource string) error {
	return fmt.Errorf("authorization failed: insufficient permissions to %s %s", action, resource)
}

// ParseError reports a failure parsing content in a given format.
func ParseError(subject, format string, cause error) error {
	return FailedToWithDetails(fmt.Sprintf("parse %s as %s", subject, format), "parser", "", cause)
}

var retryableSubstrings = []string{
	"timeout",
	"connection refused",
	"service unavailable",
	"temporarily unavailable",
	"i/o timeout",
}

// IsRetryable is a coarse heuristic over an error's message used to decide
// whether a caller's own retry policy should fire. It never classifies a
// nil error as retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, substr := range retryableSubstrings {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// Chain joins any non-nil errors into a single error, skipping nils.
// It returns nil if every argument is nil, the bare error if exactly one
// is non-nil, and a "multiple errors: ..." summary otherwise.
func Chain(errs ...error) error {
	var nonNil []string
	var only error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err.Error())
			only = err
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return only
	default:
		return fmt.Errorf("multiple errors: %s", strings.Join(nonNil, "; "))
	}
}
