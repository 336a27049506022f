// Package services provides the flow service between the API/CLI surfaces
// and the store.
package services

import (
	"errors"
	"fmt"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/store"
)

// Business logic errors - these indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")
	ErrFlowNil        = errors.New("flow cannot be nil")
	ErrEmptyFlowID    = errors.New("flow id cannot be empty")
	ErrEmptyFlowName  = errors.New("flow name must contain at least one alphanumeric character")

	// Conflicts (409 Conflict).
	ErrFlowExists = store.ErrFlowExists
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should
// return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrFlowNil) ||
		errors.Is(err, ErrEmptyFlowID) ||
		errors.Is(err, ErrEmptyFlowName) ||
		errors.Is(err, models.ErrFlowNameRequired) ||
		errors.Is(err, models.ErrInvalidSchedule) ||
		errors.Is(err, models.ErrDuplicateFetchID) ||
		errors.Is(err, models.ErrFetchIDRequired) ||
		errors.Is(err, models.ErrStepURLRequired) ||
		errors.Is(err, models.ErrInvalidOperator) ||
		errors.Is(err, models.ErrInvalidLogicMode) ||
		errors.Is(err, models.ErrLogicRulesRequired) ||
		errors.Is(err, models.ErrInvalidNotify) ||
		errors.Is(err, models.ErrInvalidDuration) ||
		errors.Is(err, models.ErrUnknownStepType) ||
		errors.Is(err, models.ErrSchemaViolation)
}

// IsConflictError checks if an error is a conflict that should return
// HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrFlowExists)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
