package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is matched by every validation failure.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when an entry id is unknown.
	ErrNotFound = errors.New("not found")
)

// ValidationError describes which field was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
