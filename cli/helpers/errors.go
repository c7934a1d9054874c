package helpers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
)

// Codes reported by CliError.
const (
	CodeCanceled  = "OPERATION_CANCELED"
	CodeTimeout   = "OPERATION_TIMEOUT"
	CodeAuth      = "AUTH_ERROR"
	CodeTransport = "TRANSPORT_ERROR"
	CodeInvalid   = "INVALID_INPUT"
)

// CliError represents a CLI-specific error with enhanced context
type CliError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   string         `json:"details,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	cause     error
}

func (e *CliError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CliError) Unwrap() error {
	return e.cause
}

// NewCliError creates a new CLI error with context
func NewCliError(code, message string, details ...string) *CliError {
	err := &CliError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// WithContext adds context to the error
func (e *CliError) WithContext(key string, value any) *CliError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Categorize converts known failures into a CliError. Unknown errors yield nil.
func Categorize(err error) *CliError {
	if err == nil {
		return nil
	}
	var cliErr *CliError
	if errors.As(err, &cliErr) {
		return cliErr
	}
	var timeout *sdkerrors.TimeoutError
	var transport *sdkerrors.TransportError
	var build *sdkerrors.BuildError
	var out *CliError
	switch {
	case errors.As(err, &timeout):
		out = NewCliError(CodeTimeout, "Workflow did not finish in time", err.Error()).
			WithContext("workflow_id", timeout.WorkflowID).
			WithContext("max_wait", timeout.MaxWaitTime.String())
	case errors.Is(err, context.Canceled):
		out = NewCliError(CodeCanceled, "Operation was canceled by user")
	case errors.Is(err, context.DeadlineExceeded):
		out = NewCliError(CodeTimeout, "Operation timed out")
	case sdkerrors.CodeOf(err) == sdkerrors.CodeAuth:
		out = NewCliError(CodeAuth, "Authentication failed", err.Error())
	case errors.As(err, &transport):
		out = NewCliError(CodeTransport, "Request to Kadoa failed", err.Error()).
			WithContext("endpoint", transport.Endpoint)
		if transport.Status > 0 {
			out.WithContext("status", transport.Status)
		}
	case errors.As(err, &build):
		out = NewCliError(CodeInvalid, "Invalid input", err.Error())
	default:
		return nil
	}
	out.cause = err
	return out
}

// FormatError renders err for mode.
func FormatError(err error, mode Mode, color bool) string {
	if err == nil {
		return ""
	}
	message, details := err.Error(), ""
	code := ""
	if cliErr := Categorize(err); cliErr != nil {
		message, details, code = cliErr.Message, cliErr.Details, cliErr.Code
	}
	if mode == ModeJSON {
		payload := map[string]any{"error": message, "details": details}
		if code != "" {
			payload["code"] = code
		}
		data, marshalErr := json.MarshalIndent(payload, "", "  ")
		if marshalErr != nil {
			return `{"error": "JSON marshaling failed", "details": ""}`
		}
		return string(data)
	}
	return formatErrorText(message, details, color)
}

func formatErrorText(message, details string, color bool) string {
	if !color {
		if details == "" {
			return "error: " + message
		}
		return fmt.Sprintf("error: %s\n  %s", message, details)
	}
	result := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true).Render("✗ " + message)
	if details != "" {
		detail := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
		result += "\n" + detail.Render("  "+strings.TrimSpace(details))
	}
	return result
}

// OutputError writes err to w in the format of mode.
func OutputError(w io.Writer, err error, mode Mode, color bool) {
	if err == nil {
		return
	}
	fmt.Fprintln(w, FormatError(err, mode, color))
}
