package errors

import (
	"errors"
	"fmt"
)

// Common error types for categorization and handling

var (
	// ErrNotFound indicates a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidConfig indicates an agent or profile configuration error;
	// these must surface at load time, never mid-request
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput indicates invalid caller input
	ErrInvalidInput = errors.New("invalid input")

	// ErrLLMCommunication indicates an embedding or generation call failed
	ErrLLMCommunication = errors.New("llm communication failed")

	// ErrDatabaseOperation indicates a knowledge store operation failed
	ErrDatabaseOperation = errors.New("database operation failed")
)

// WrapError wraps an error with a context message
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapErrorf wraps an error with a formatted context message
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidConfig checks if error is a configuration error
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// IsLLMCommunication checks if error is an LLM communication error
func IsLLMCommunication(err error) bool {
	return errors.Is(err, ErrLLMCommunication)
}
