package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the service layers. Repositories translate
// driver-level not-found results to ErrNotFound so callers never depend on
// a storage backend.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidKaryotype   = errors.New("invalid karyotype")
	ErrInvalidIteration   = errors.New("invalid test iteration")
	ErrDatabaseConnection = errors.New("database connection failed")
	ErrCacheConnection    = errors.New("cache connection failed")
	ErrLISUnavailable     = errors.New("laboratory information system unavailable")
	ErrOverrideExists     = errors.New("an active QC override already exists for this record")
	ErrNoOverride         = errors.New("no active QC override for this record")
)

// ValidationError reports a field-level input validation failure.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError builds a field-level validation error.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
