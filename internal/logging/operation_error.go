package logging

import "fmt"

// OperationError annotates an error with the operation and cycle it came from.
type OperationError struct {
	Operation string
	CycleID   string
	Err       error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.CycleID != "" {
		return fmt.Sprintf("%s (cycle_id=%s): %v", e.Operation, e.CycleID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps err with structured context. A nil err stays nil.
func NewOperationError(operation, cycleID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, CycleID: cycleID, Err: err}
}
