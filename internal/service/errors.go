package service

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated  = errors.New("sign in required")
	ErrSubmitInProgress = errors.New("a generation is already in progress")
	ErrGeneration       = errors.New("generation request failed")
	ErrNoResult         = errors.New("no generated thumbnail to download")
)

// GenerationError wraps a failed remote call. Cause carries the transport or
// status error from the generator.
type GenerationError struct {
	RequestID string
	Cause     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%v (request %s): %v", ErrGeneration, e.RequestID, e.Cause)
}

func (e *GenerationError) Unwrap() []error {
	return []error{ErrGeneration, e.Cause}
}
