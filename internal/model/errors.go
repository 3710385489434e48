package model

import (
	"errors"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrExecution         = errors.New("execution failed")
	ErrStructuring       = errors.New("structuring failed")
	ErrEngineUnavailable = errors.New("engine unavailable")
	ErrNotReady          = errors.New("task not ready")
	ErrDuplicateTask     = errors.New("task id already used")
	ErrUnknownTask       = errors.New("unknown task")
)

// Error type names used when errors cross the engine boundary.
const (
	ErrTypeInvalidInput = "InvalidInput"
	ErrTypeExecution    = "ExecutionError"
	ErrTypeStructuring  = "StructuringError"
)

// ErrType maps a sentinel error onto its wire type name. It returns an empty
// string for errors outside the task error taxonomy.
func ErrType(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return ErrTypeInvalidInput
	case errors.Is(err, ErrExecution):
		return ErrTypeExecution
	case errors.Is(err, ErrStructuring):
		return ErrTypeStructuring
	default:
		return ""
	}
}
