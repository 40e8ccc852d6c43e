package core

import (
	"fmt"
)

// ExecError represents a structured execution error with kind and details
type ExecError struct {
	Kind    ErrorKind
	Code    string                 // Machine-readable code: element_not_found, wait_timeout, etc.
	Message string                 // Human-readable message
	Details map[string]interface{} // Additional context
	Cause   error                  // Underlying error
}

// Error implements the error interface
func (e *ExecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecError) Unwrap() error {
	return e.Cause
}

// Is matches against the predefined sentinels by kind and code
func (e *ExecError) Is(target error) bool {
	t, ok := target.(*ExecError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecError) WithCause(cause error) *ExecError {
	return &ExecError{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecError) WithMessage(msg string) *ExecError {
	return &ExecError{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: msg,
		Details: e.Details,
		Cause:   e.Cause,
	}
}

// WithMessagef is WithMessage with fmt.Sprintf formatting
func (e *ExecError) WithMessagef(format string, args ...interface{}) *ExecError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithDetails returns a copy of the error with additional details
func (e *ExecError) WithDetails(details map[string]interface{}) *ExecError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecError{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: e.Message,
		Details: merged,
		Cause:   e.Cause,
	}
}

// Predefined errors
var (
	// Element errors. These come from action commands (Click, Fill,
	// ScrollTo) and are retryable; assertion outcomes are not.
	ErrElementNotFound = &ExecError{
		Kind:    ErrKindDriver,
		Code:    "element_not_found",
		Message: "element not found",
	}
	ErrElementNotVisible = &ExecError{
		Kind:    ErrKindDriver,
		Code:    "element_not_visible",
		Message: "element not visible",
	}

	// Assertion errors
	ErrAssertionFailed = &ExecError{
		Kind:    ErrKindAssertion,
		Code:    "assertion_failed",
		Message: "assertion failed",
	}
	ErrCookieMismatch = &ExecError{
		Kind:    ErrKindAssertion,
		Code:    "cookie_mismatch",
		Message: "cookie does not match expected value",
	}

	// Timeout errors
	ErrWaitTimeout = &ExecError{
		Kind:    ErrKindStepTimeout,
		Code:    "wait_timeout",
		Message: "wait condition timed out",
	}
	ErrNavigationTimeout = &ExecError{
		Kind:    ErrKindStepTimeout,
		Code:    "navigation_timeout",
		Message: "navigation timed out",
	}
	ErrPopupTimeout = &ExecError{
		Kind:    ErrKindStepTimeout,
		Code:    "popup_timeout",
		Message: "no popup appeared before the deadline",
	}

	// Context errors
	ErrContextStackUnderflow = &ExecError{
		Kind:    ErrKindStackUnderflow,
		Code:    "context_stack_underflow",
		Message: "cannot leave the root browsing context",
	}
	ErrUnknownSession = &ExecError{
		Kind:    ErrKindUnknownSession,
		Code:    "unknown_session",
		Message: "session was never saved",
	}
	ErrNoPopup = &ExecError{
		Kind:    ErrKindDriver,
		Code:    "no_popup",
		Message: "no popup available to switch to",
	}
	ErrFrameNotFound = &ExecError{
		Kind:    ErrKindDriver,
		Code:    "frame_not_found",
		Message: "iframe selector matched no frame",
	}

	// Resolution errors
	ErrUnknownFlow = &ExecError{
		Kind:    ErrKindResolution,
		Code:    "unknown_flow",
		Message: "flow is not defined",
	}
	ErrUnresolvedVariable = &ExecError{
		Kind:    ErrKindUnresolvedVariable,
		Code:    "unresolved_variable",
		Message: "variable has no binding",
	}

	// Driver errors
	ErrDriverUnavailable = &ExecError{
		Kind:    ErrKindDriver,
		Code:    "driver_unavailable",
		Message: "could not reach the browser backend",
	}
	ErrEvalFailed = &ExecError{
		Kind:    ErrKindDriver,
		Code:    "eval_failed",
		Message: "page-context evaluation failed",
	}
)

// NewExecError creates a new ExecError with the given parameters
func NewExecError(kind ErrorKind, code, message string) *ExecError {
	return &ExecError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}
