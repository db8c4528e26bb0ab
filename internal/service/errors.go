package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any side effect took place.
	ErrValidation = errors.New("invalid input")
	// ErrNotFound indicates that no listing exists for the id and owner.
	ErrNotFound = errors.New("listing not found")
	// ErrUpstream indicates that the image store failed.
	ErrUpstream = errors.New("image store failure")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func upstreamError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
}
