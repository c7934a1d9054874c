// Package sdkerrors defines the error types returned by the Kadoa SDK.
//
// Failures talking to the server surface as *TransportError, an exhausted
// workflow wait as *TimeoutError and builder validation as *BuildError.
// Everything else the SDK rejects is an *Error carrying a Code.
package sdkerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Code classifies SDK failures.
type Code string

const (
	CodeUnknown    Code = "UNKNOWN"
	CodeConfig     Code = "CONFIG_ERROR"
	CodeAuth       Code = "AUTH_ERROR"
	CodeValidation Code = "VALIDATION_ERROR"
	CodeNotFound   Code = "NOT_FOUND"
	CodeRateLimit  Code = "RATE_LIMITED"
	CodeTimeout    Code = "TIMEOUT"
	CodeNetwork    Code = "NETWORK_ERROR"
	CodeHTTP       Code = "HTTP_ERROR"
	CodeInternal   Code = "INTERNAL_ERROR"
)

// Error is an SDK-level failure that did not come from the transport.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Cause   error
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an Error that keeps cause in its chain.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithDetails returns a copy of e with additional details merged in.
func (e *Error) WithDetails(details map[string]any) *Error {
	out := *e
	out.Details = make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		out.Details[k] = v
	}
	for k, v := range details {
		out.Details[k] = v
	}
	return &out
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// TransportError reports a failed exchange with the server: either the request
// never completed or the server answered with a non-2xx status.
type TransportError struct {
	Code      Code
	Status    int
	Method    string
	Endpoint  string
	RequestID string
	Body      string
	Message   string
	Cause     error
}

// NewHTTPError builds a TransportError for a non-2xx response.
func NewHTTPError(method, endpoint string, status int, requestID, body, message string) *TransportError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &TransportError{
		Code:      CodeForStatus(status),
		Status:    status,
		Method:    method,
		Endpoint:  endpoint,
		RequestID: requestID,
		Body:      body,
		Message:   message,
	}
}

// NewNetworkError builds a TransportError for a request that produced no response.
func NewNetworkError(method, endpoint string, cause error) *TransportError {
	code := CodeNetwork
	if errors.Is(cause, context.DeadlineExceeded) {
		code = CodeTimeout
	}
	msg := "request failed"
	if cause != nil {
		msg = cause.Error()
	}
	return &TransportError{
		Code:     code,
		Method:   method,
		Endpoint: endpoint,
		Message:  msg,
		Cause:    cause,
	}
}

func (e *TransportError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Method != "" || e.Endpoint != "" {
		fmt.Fprintf(&b, " %s %s", e.Method, e.Endpoint)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " [request %s]", e.RequestID)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether repeating the request could succeed.
func (e *TransportError) Retryable() bool {
	if e == nil {
		return false
	}
	if e.Status == 0 {
		return !errors.Is(e.Cause, context.Canceled)
	}
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests || e.Status == http.StatusRequestTimeout
}

// CodeForStatus maps an HTTP status to an error code.
func CodeForStatus(status int) Code {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CodeAuth
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusRequestTimeout:
		return CodeTimeout
	case status == http.StatusTooManyRequests:
		return CodeRateLimit
	case status >= 400 && status < 500:
		return CodeValidation
	case status >= 500:
		return CodeHTTP
	default:
		return CodeUnknown
	}
}

// TimeoutError reports that a workflow did not reach a terminal state within the wait budget.
type TimeoutError struct {
	WorkflowID  string
	MaxWaitTime time.Duration
}

func (e *TimeoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("workflow %s did not complete within %s", e.WorkflowID, e.MaxWaitTime)
}

// BuildError aggregates validation failures collected while building a value.
type BuildError struct {
	Errors []error
}

func (e *BuildError) Error() string {
	if e == nil || len(e.Errors) == 0 {
		return "build failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("build failed: %v", e.Errors[0])
	}
	parts := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("build failed with %d errors: %s", len(e.Errors), strings.Join(parts, "; "))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *BuildError) Unwrap() []error {
	if e == nil {
		return nil
	}
	return e.Errors
}

// IsTransport reports whether err carries a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsTimeout reports whether err carries a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// CodeOf extracts the code from err, or CodeUnknown.
func CodeOf(err error) Code {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Code
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	if IsTimeout(err) {
		return CodeTimeout
	}
	var be *BuildError
	if errors.As(err, &be) {
		return CodeValidation
	}
	return CodeUnknown
}
