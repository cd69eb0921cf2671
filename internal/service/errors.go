package service

import (
	"errors"
	"fmt"
)

// ErrEventDropped is returned when the event bus refuses an event.
var ErrEventDropped = errors.New("event bus is full or closed")

// ValidationError is returned when request data fails validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for %q: %s", e.Field, e.Message)
	}
	return e.Message
}

// UnauthorizedError is returned when an operation needs a user and none is known.
type UnauthorizedError struct{}

func (e *UnauthorizedError) Error() string {
	return "unauthorized"
}
