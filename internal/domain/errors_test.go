package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelWrapping(t *testing.T) {
	tests := []struct {
		name     string
		sentinel error
	}{
		{"NotFound", ErrNotFound},
		{"InvalidInput", ErrInvalidInput},
		{"InvalidKaryotype", ErrInvalidKaryotype},
		{"InvalidIteration", ErrInvalidIteration},
		{"DatabaseConnection", ErrDatabaseConnection},
		{"CacheConnection", ErrCacheConnection},
		{"LISUnavailable", ErrLISUnavailable},
		{"OverrideExists", ErrOverrideExists},
		{"NoOverride", ErrNoOverride},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("%w: connection refused", tt.sentinel)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, sentinel) = false, want true", wrapped)
			}
		})
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	if errors.Is(ErrOverrideExists, ErrNoOverride) {
		t.Error("ErrOverrideExists should not match ErrNoOverride")
	}
	if errors.Is(ErrNotFound, ErrInvalidInput) {
		t.Error("ErrNotFound should not match ErrInvalidInput")
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		message string
		value   interface{}
	}{
		{
			name:    "String validation error",
			field:   "sample_id",
			message: "must not be blank",
			value:   "",
		},
		{
			name:    "Numeric validation error",
			field:   "fetal_fraction",
			message: "must be non-negative",
			value:   -1.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, tt.value)

			if err.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, err.Field)
			}

			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}

			if err.Value != tt.value {
				t.Errorf("Expected value %v, got %v", tt.value, err.Value)
			}

			expectedError := "validation error for field '" + tt.field + "': " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}
