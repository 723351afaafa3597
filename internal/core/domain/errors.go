package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("operation conflicts with document state")
	ErrServiceUnavailable = errors.New("dependencies unavailable")
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

// UnavailableError carries the full health report alongside the gate refusal
// so callers can surface per-service detail instead of a bare boolean.
type UnavailableError struct {
	Report HealthReport
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("dependencies unavailable: overall=%s", e.Report.Overall)
}

func (e *UnavailableError) Unwrap() error {
	return ErrServiceUnavailable
}
