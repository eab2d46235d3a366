package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a conversation or message is absent or not owned by the caller
	ErrNotFound = errors.New("not found")
	// ErrInvalidOperation is returned when editing a message that is not a user turn
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrEmptyContent is returned when a turn has no text
	ErrEmptyContent = errors.New("message content is empty")
)

// ProviderError wraps a model client failure on the response path
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("model provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
