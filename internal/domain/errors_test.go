package domain

import (
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Basic error",
			code:      ErrInvalidInput,
			message:   "Invalid patient record",
			details:   "The request body is not valid JSON",
			requestID: "req-123",
		},
		{
			name:      "Database error",
			code:      ErrDatabaseError,
			message:   "Database connection failed",
			details:   "Unable to connect to PostgreSQL",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}
			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}
			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}
			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
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
			name:    "Float validation error",
			field:   "labs.tsh",
			message: "lab value must not be negative",
			value:   -1.5,
		},
		{
			name:    "Integer validation error",
			field:   "demographics.age",
			message: "age must be zero or greater",
			value:   -1,
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

func TestErrorConstants(t *testing.T) {
	expected := map[string]string{
		ErrInvalidInput:    "INVALID_INPUT",
		ErrValidation:      "VALIDATION_ERROR",
		ErrExternalService: "EXTERNAL_SERVICE_ERROR",
		ErrDatabaseError:   "DATABASE_ERROR",
		ErrNotFound:        "NOT_FOUND",
		ErrRateLimit:       "RATE_LIMIT_EXCEEDED",
		ErrInternalServer:  "INTERNAL_SERVER_ERROR",
	}

	for actual, want := range expected {
		if actual != want {
			t.Errorf("Expected %s, got %s", want, actual)
		}
	}
}
