package domain

import (
	"errors"
	"fmt"
	"time"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput    = "INVALID_INPUT"
	ErrValidation      = "VALIDATION_ERROR"
	ErrExternalService = "EXTERNAL_SERVICE_ERROR"
	ErrDatabaseError   = "DATABASE_ERROR"
	ErrNotFound        = "NOT_FOUND"
	ErrRateLimit       = "RATE_LIMIT_EXCEEDED"
	ErrInternalServer  = "INTERNAL_SERVER_ERROR"
)

// ErrAssessmentNotFound is returned by repositories for unknown IDs.
var ErrAssessmentNotFound = errors.New("assessment not found")

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
