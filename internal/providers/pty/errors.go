package pty

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnavailable is returned by Spawn when the pty capability probe failed.
// It is permanent for the lifetime of the process.
var ErrUnavailable = errors.New("pseudo-terminal backend unavailable")

// ErrInvalidSize is returned for geometry the kernel window size cannot hold.
var ErrInvalidSize = errors.New("terminal size out of range")

// MaxDimension is the largest column or row count a pty accepts.
const MaxDimension = math.MaxUint16

// SpawnErrorKind classifies why a process could not start.
type SpawnErrorKind int

const (
	// OSFailure covers shell lookup, pty allocation and exec failures.
	OSFailure SpawnErrorKind = iota
	// InvalidWorkingDirectory means the requested cwd is missing or not a directory.
	InvalidWorkingDirectory
)

// String returns the string representation of the kind
func (k SpawnErrorKind) String() string {
	switch k {
	case InvalidWorkingDirectory:
		return "invalid_working_directory"
	case OSFailure:
		return "os_failure"
	default:
		return "unknown"
	}
}

// SpawnError reports a failed Spawn. Callers may retry with corrected input.
type SpawnError struct {
	Kind SpawnErrorKind
	Path string // working directory or shell, depending on Kind
	Err  error
}

func (e *SpawnError) Error() string {
	switch e.Kind {
	case InvalidWorkingDirectory:
		return fmt.Sprintf("invalid working directory %q: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("failed to start %q: %v", e.Path, e.Err)
	}
}

func (e *SpawnError) Unwrap() error { return e.Err }
