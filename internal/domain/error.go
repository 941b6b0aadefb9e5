package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrPromoCodeExhausted = errors.New("promo code exhausted")
)

// Legacy promo-code errors. The literal messages are consumed by existing
// clients and must never be altered or wrapped.
var (
	ErrPromoCodeNotFoundLegacy    = errors.New("Promotional code does not exists.")
	ErrPromoCodeUnavailableLegacy = errors.New("Unavailable promotional code.")
)

// ValidationError reports malformed input, keyed by field. The caller can fix
// the input and retry; it is never retried automatically.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

func (e *ValidationError) Add(field, reason string) *ValidationError {
	e.Fields[field] = append(e.Fields[field], reason)
	return e
}

func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, reasons := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(reasons, "; ")))
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, ", ")
}

// BusinessRuleError reports an operation that is well-formed but semantically
// invalid given current state (insufficient funds, exhausted code, ...).
type BusinessRuleError struct {
	Message string
}

func NewBusinessRuleError(format string, args ...interface{}) *BusinessRuleError {
	return &BusinessRuleError{Message: fmt.Sprintf(format, args...)}
}

func (e *BusinessRuleError) Error() string { return e.Message }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsBusinessRule reports whether err is (or wraps) a BusinessRuleError.
func IsBusinessRule(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}
