// Package validate checks builder and request inputs before anything is
// sent to the Kadoa API. Helpers return plain errors; callers wrap them
// into sdkerrors with the operation that failed.
package validate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

var (
	errNoContext = errors.New("context is required")
	vars         = validator.New()
)

func check(ctx context.Context, name string) error {
	if ctx == nil {
		return errNoContext
	}
	if strings.TrimSpace(name) == "" {
		return errors.New("field name is required")
	}
	return nil
}

// NonEmpty rejects blank strings.
func NonEmpty(ctx context.Context, name, value string) error {
	if err := check(ctx, name); err != nil {
		return err
	}
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	return nil
}

// URL accepts absolute http and https URLs only.
func URL(ctx context.Context, raw string) error {
	if ctx == nil {
		return errNoContext
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	switch {
	case err != nil:
		return fmt.Errorf("url must be valid: %w", err)
	case u.Scheme == "":
		return fmt.Errorf("url %q must include a scheme such as http or https", raw)
	case u.Scheme != "http" && u.Scheme != "https":
		return fmt.Errorf("url scheme must be http or https: got %s", u.Scheme)
	case u.Host == "":
		return fmt.Errorf("url %q must include a host", raw)
	}
	return nil
}

// Duration rejects zero and negative durations.
func Duration(ctx context.Context, name string, d time.Duration) error {
	if err := check(ctx, name); err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive: got %s", name, d)
	}
	return nil
}

// Email checks an email notification recipient or sender.
func Email(ctx context.Context, addr string) error {
	if ctx == nil {
		return errNoContext
	}
	if err := vars.VarCtx(ctx, strings.TrimSpace(addr), "required,email"); err != nil {
		return fmt.Errorf("invalid email address: %q", addr)
	}
	return nil
}

// OneOf rejects values outside allowed.
func OneOf[T comparable](ctx context.Context, name string, value T, allowed ...T) error {
	if err := check(ctx, name); err != nil {
		return err
	}
	if !slices.Contains(allowed, value) {
		return fmt.Errorf("%s must be one of %v: got %v", name, allowed, value)
	}
	return nil
}

// Cron parses a standard five-field schedule expression.
func Cron(ctx context.Context, expr string) error {
	if ctx == nil {
		return errNoContext
	}
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return errors.New("cron expression is required")
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("cron expression is invalid: %w", err)
	}
	return nil
}
