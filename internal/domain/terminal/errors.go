package terminal

import (
	"errors"

	"github.com/GriffinCanCode/termhost/internal/providers/pty"
)

var (
	// ErrBackendUnavailable is returned by every Create once the pty probe
	// has failed. It is permanent for the lifetime of the process.
	ErrBackendUnavailable = pty.ErrUnavailable

	// ErrCapacityExceeded is returned when the live session count has reached
	// the configured maximum. Nothing is queued or evicted.
	ErrCapacityExceeded = errors.New("terminal limit reached")

	// ErrInvalidSize is returned by Resize for geometry a pty cannot hold.
	ErrInvalidSize = pty.ErrInvalidSize

	ErrRegistryClosed  = errors.New("session registry closed")
	ErrSessionNotFound = errors.New("session not found")
)

// SpawnError reports a session whose process could not start.
type SpawnError = pty.SpawnError

// Spawn error kinds.
const (
	OSFailure               = pty.OSFailure
	InvalidWorkingDirectory = pty.InvalidWorkingDirectory
)

// ErrorKind returns a short label for err suitable for metrics.
func ErrorKind(err error) string {
	var spawnErr *SpawnError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrRegistryClosed):
		return "registry_closed"
	case errors.Is(err, ErrInvalidSize):
		return "invalid_size"
	case errors.As(err, &spawnErr):
		return spawnErr.Kind.String()
	default:
		return "unknown"
	}
}
