// Package kernelerrors defines the closed taxonomy of errors surfaced by
// the kernel to callers (spec.md §7). It generalizes the teacher's
// tagged-error pattern (runtime/agent/planner.ToolError / RetryHint) to the
// kernel's own failure codes so downstream code can pattern-match on Code
// instead of parsing messages.
package kernelerrors

import (
	"errors"
	"fmt"
)

// Code is the closed set of error codes surfaced across the public
// boundary. No stack traces cross this boundary; full internal context
// goes to telemetry instead (spec.md §7).
type Code string

const (
	CodePolicyDenied     Code = "POLICY_DENIED"
	CodeApprovalRequired Code = "APPROVAL_REQUIRED"
	CodeCRVBlocked       Code = "CRV_BLOCKED"
	CodeSchemaInvalid    Code = "SCHEMA_INVALID"
	CodeTimeout          Code = "TIMEOUT"
	CodeCancelled        Code = "CANCELLED"
	CodeOutboxBusy       Code = "OUTBOX_BUSY"
	CodeRetryExhausted   Code = "RETRY_EXHAUSTED"
	CodeDegraded         Code = "DEGRADED"
	CodeFatal            Code = "FATAL"

	// Policy-specific sub-reasons, set as policy.Decision.Code by the policy
	// gate (spec.md §4.4).
	CodeToolNotAllowed          Code = "TOOL_NOT_ALLOWED"
	CodeInsufficientPermissions Code = "INSUFFICIENT_PERMISSIONS"
	CodeInvalidRequest          Code = "INVALID_REQUEST"
)

// Error is the tagged-union error type surfaced by the kernel. Every
// failure carries a code, a human-readable message, an optional approval
// token, and optional remediation guidance.
type Error struct {
	Code          Code
	Message       string
	ApprovalToken string
	Remediation   string
	Metadata      map[string]any
	Cause         error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an Error carrying an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the Code from err if it is (or wraps) a kernel Error.
func CodeOf(err error) (Code, bool) {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Code, true
	}
	return "", false
}
