package persistence

import "errors"

// Standard persistence error types that all implementations should use.
var (
	// ErrAutomationNotFound indicates an automation was not found by the given identifier.
	ErrAutomationNotFound = errors.New("automation not found")

	// ErrExecutionNotFound indicates an execution was not found by the given identifier.
	ErrExecutionNotFound = errors.New("execution not found")
)

// IsAutomationNotFound checks if an error indicates an automation was not found.
func IsAutomationNotFound(err error) bool {
	return errors.Is(err, ErrAutomationNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}
