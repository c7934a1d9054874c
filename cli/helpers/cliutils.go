package helpers

import (
	"fmt"
	"strings"
	"time"
)

// ParseVariables turns key=value pairs into a variables map. Values are kept as strings.
func ParseVariables(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, NewCliError(CodeInvalid, "variables must look like key=value", fmt.Sprintf("provided: %s", pair))
		}
		vars[key] = value
	}
	return vars, nil
}

// ValidateRequired validates that a required string value is not empty
func ValidateRequired(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return NewCliError(CodeInvalid, fmt.Sprintf("%s is required", fieldName))
	}
	return nil
}

// Truncate returns s truncated to at most maxLength characters.
// If s is longer than maxLength and maxLength > 3, the result ends with "..." and has length maxLength.
// If maxLength <= 3 the function truncates to maxLength characters without adding an ellipsis.
func Truncate(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return s[:maxLength]
	}
	return s[:maxLength-3] + "..."
}

// Pluralize returns singular or plural form based on count
func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// FormatTime renders t for tables; the zero time renders as "-".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
