package store

import (
	"errors"
	"fmt"
)

// Standard store error types that all implementations use.
var (
	// ErrFlowNotFound indicates a flow was not found by the given identifier.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrFlowExists indicates a flow with the same identifier already exists.
	ErrFlowExists = errors.New("flow already exists")

	// ErrRunNotFound indicates a run record was not found by the given identifier.
	ErrRunNotFound = errors.New("run not found")
)

// FlowError wraps store errors with operation context.
type FlowError struct {
	Op     string // Operation being performed (e.g. "Get", "Create", "AppendRun")
	FlowID string // Flow ID if applicable
	Err    error  // Underlying error
}

func (e *FlowError) Error() string {
	if e.FlowID != "" {
		return fmt.Sprintf("%s operation failed for flow %s: %v", e.Op, e.FlowID, e.Err)
	}

	return fmt.Sprintf("%s operation failed: %v", e.Op, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func (e *FlowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewFlowError creates a new flow error with context.
func NewFlowError(op, flowID string, err error) *FlowError {
	return &FlowError{
		Op:     op,
		FlowID: flowID,
		Err:    err,
	}
}

// IsFlowNotFound checks if an error indicates a flow was not found.
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

// IsFlowExists checks if an error indicates a flow id collision.
func IsFlowExists(err error) bool {
	return errors.Is(err, ErrFlowExists)
}

// IsRunNotFound checks if an error indicates a run was not found.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}
