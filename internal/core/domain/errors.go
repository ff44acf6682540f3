package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat  = errors.New("unsupported document format")
	ErrUnsupportedContent = errors.New("unsupported document content")
	ErrConfiguration      = errors.New("provider not configured")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrTemporary          = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ProviderError reports a transport-level failure of one provider call. It
// carries the provider id and the underlying cause so the caller can decide
// between retry and provider switch.
type ProviderError struct {
	Provider Provider
	Cause    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Cause)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// SchemaValidationError reports model output that failed the structural parse
// or lacks a required field. Raw retains the original model text for
// diagnostics.
type SchemaValidationError struct {
	Field string
	Raw   string
	Cause error
}

func (e *SchemaValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("model output missing required field %q", e.Field)
	}
	return fmt.Sprintf("model output is not valid JSON: %v", e.Cause)
}

func (e *SchemaValidationError) Unwrap() error { return e.Cause }
