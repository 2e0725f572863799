package runner

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors matched with errors.Is.
var (
	ErrExecutableNotFound = errors.New("compiler executable not found")
	ErrTimeout            = errors.New("compiler timed out")
)

// FailureKind classifies why an invocation produced no usable output.
type FailureKind string

const (
	FailureNone     FailureKind = ""
	FailureNotFound FailureKind = "not_found"
	FailureTimeout  FailureKind = "timeout"
	FailureSpawn    FailureKind = "spawn"
)

// NotFoundError is returned when the compiler path does not exist.
// Nothing is staged or spawned in that case.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("compiler executable not found at %s. Please build your compiler.", e.Path)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrExecutableNotFound }

// TimeoutError is returned when the compiler ran longer than the timeout
// and was killed. Any partial output is discarded.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("compiler timed out after %s", e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// SpawnError wraps any other failure to stage input for, start, or
// communicate with the compiler.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string { return e.Err.Error() }

func (e *SpawnError) Unwrap() error { return e.Err }

// Kind reports the FailureKind of err. A nil error is FailureNone; an
// error of unknown type counts as a spawn failure.
func Kind(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrExecutableNotFound):
		return FailureNotFound
	case errors.Is(err, ErrTimeout):
		return FailureTimeout
	default:
		return FailureSpawn
	}
}
