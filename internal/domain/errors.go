package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrLocatorExpired is returned when a locator key is missing from the cache
	ErrLocatorExpired = errors.New("locator missing or expired")

	// ErrArtifactNotFound is returned when an artifact does not exist in the store
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrInvalidKey is returned for keys that cannot be used as artifact names
	ErrInvalidKey = errors.New("invalid artifact key")

	// ErrQueueClosed is returned when submitting to a pool that has shut down
	ErrQueueClosed = errors.New("task queue closed")
)

// ResolutionError means a task's locator could not be resolved at dequeue time
type ResolutionError struct {
	Key string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve locator %s: %v", e.Key, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// FetchError means the external retrieval failed
type FetchError struct {
	Address string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsResolutionError reports whether err is (or wraps) a ResolutionError
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

// IsFetchError reports whether err is (or wraps) a FetchError
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
