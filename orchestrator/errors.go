package orchestrator

import (
	"errors"
	"fmt"
)

// ErrorCode classifies routing failures. Every code is recoverable at the
// request boundary: a failed request never corrupts the registry and the
// next request starts clean.
type ErrorCode string

const (
	// CodeValidation indicates malformed caller input, such as an empty
	// request or a descriptor without an ID or endpoint.
	CodeValidation ErrorCode = "VALIDATION"
	// CodeNoMatchingAgent indicates no agent scored above zero and no
	// fallback agent is configured.
	CodeNoMatchingAgent ErrorCode = "NO_MATCHING_AGENT"
	// CodeNetwork indicates the selected agent could not be reached or
	// answered outside the protocol.
	CodeNetwork ErrorCode = "NETWORK"
	// CodeRemoteTaskFailed indicates the remote task ended in the failed
	// state.
	CodeRemoteTaskFailed ErrorCode = "REMOTE_TASK_FAILED"
	// CodeRemoteTaskCanceled indicates the remote task was canceled.
	CodeRemoteTaskCanceled ErrorCode = "REMOTE_TASK_CANCELED"
	// CodeTimeout indicates the remote task did not reach a terminal state
	// within the polling budget.
	CodeTimeout ErrorCode = "TIMEOUT"
	// CodeInternal indicates an unexpected fault inside the router itself.
	CodeInternal ErrorCode = "INTERNAL"
)

// Error is the structured error type used across the routing pipeline.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks whether retrying the request may succeed.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// NewValidationError reports malformed caller input.
func NewValidationError(message string) *Error {
	return NewError(CodeValidation, message)
}

// NewNoMatchingAgentError reports that scoring produced no candidate.
func NewNoMatchingAgentError(message string) *Error {
	return NewError(CodeNoMatchingAgent, message)
}

// NewNetworkError reports a transport failure against a downstream agent.
func NewNetworkError(message string, cause error) *Error {
	return NewError(CodeNetwork, message).WithCause(cause).WithRetryable(true)
}

// NewRemoteTaskFailedError reports a remote task that ended as failed.
func NewRemoteTaskFailedError(message string) *Error {
	return NewError(CodeRemoteTaskFailed, message)
}

// NewRemoteTaskCanceledError reports a remote task that was canceled.
func NewRemoteTaskCanceledError(message string) *Error {
	return NewError(CodeRemoteTaskCanceled, message)
}

// NewTimeoutError reports an exhausted polling budget.
func NewTimeoutError(message string) *Error {
	return NewError(CodeTimeout, message).WithRetryable(true)
}

// CodeOf extracts the ErrorCode from err, unwrapping as needed. Errors
// outside the routing taxonomy map to CodeInternal.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsRetryable reports whether err is marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// AsError converts err into an *Error, wrapping foreign errors under
// CodeInternal so results always carry the structured form.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(CodeInternal, "unexpected error").WithCause(err)
}
