package terminal

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/termhost/internal/providers/pty"
	"github.com/GriffinCanCode/termhost/internal/shared/id"
	"go.uber.org/zap"
)

// State is the lifecycle state of a session.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateExited
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Reasons a session ended, as reported to metrics and logs.
const (
	reasonKilled = "killed"
	reasonExited = "exited"
)

var errSessionExited = errors.New("session already exited")

// Session is one shell process bound to a pty.
//
// The process handle is owned exclusively by the session. Every path that
// ends the session converges on dispose, which runs exactly once.
type Session struct {
	ID         id.SessionID
	Shell      string
	WorkingDir string
	StartedAt  time.Time

	handle pty.Handle
	topic  *topic
	router *Router
	logger *zap.Logger

	state atomic.Int32

	mu       sync.Mutex
	cols     int
	rows     int
	exitCode int
	exitFns  []func(*Session)
	done     bool // exit listeners have fired

	// onDispose lets the registry forget the session.
	onDispose func(s *Session, reason string)
}

// SessionInfo is the public representation of a session
type SessionInfo struct {
	ID         string    `json:"id"`
	Shell      string    `json:"shell"`
	WorkingDir string    `json:"working_dir"`
	Cols       int       `json:"cols"`
	Rows       int       `json:"rows"`
	Pid        int       `json:"pid"`
	State      string    `json:"state"`
	ExitCode   int       `json:"exit_code"`
	StartedAt  time.Time `json:"started_at"`
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Start attaches the session to its handle and begins streaming output.
// Sessions created without DeferStart are already started.
func (s *Session) Start() error {
	if !s.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		if s.State() == StateExited {
			return errSessionExited
		}
		return nil
	}

	s.handle.OnData(func(data []byte) {
		s.router.publish(s.topic, data)
	})
	s.handle.OnExit(s.handleExit)

	s.logger.Debug("Session started",
		zap.String("session_id", s.ID.String()),
		zap.Int("pid", s.handle.Pid()),
	)
	return nil
}

// Write forwards input to the process. Writing to an exited session is a
// benign race and returns nil.
func (s *Session) Write(data []byte) error {
	if s.State() == StateExited {
		s.logStale("write")
		return nil
	}
	if _, err := s.handle.Write(data); err != nil {
		// The pty may close between the state check and the write.
		if s.State() == StateExited {
			s.logStale("write")
			return nil
		}
		return err
	}
	return nil
}

// Resize changes the terminal geometry. Non-positive geometry and resizing
// an exited session are no-ops; geometry above pty.MaxDimension is rejected
// with ErrInvalidSize.
func (s *Session) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	if cols > pty.MaxDimension || rows > pty.MaxDimension {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, cols, rows)
	}
	if s.State() == StateExited {
		s.logStale("resize")
		return nil
	}
	if err := s.handle.Resize(cols, rows); err != nil {
		if s.State() == StateExited {
			s.logStale("resize")
			return nil
		}
		return err
	}

	s.mu.Lock()
	s.cols, s.rows = cols, rows
	s.mu.Unlock()
	return nil
}

func (s *Session) logStale(op string) {
	s.logger.Debug("Ignoring operation on exited session",
		zap.String("session_id", s.ID.String()),
		zap.String("op", op),
	)
}

// Kill ends the session. The state is Exited when Kill returns; the OS
// process is torn down asynchronously. Kill is idempotent.
func (s *Session) Kill() {
	s.dispose(reasonKilled)
}

// OnExited registers fn to run once the session has ended, whatever the
// cause. It runs immediately if the session has already ended.
func (s *Session) OnExited(fn func(*Session)) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		fn(s)
		return
	}
	s.exitFns = append(s.exitFns, fn)
	s.mu.Unlock()
}

// ExitCode returns the process exit code, or -1 while running or when the
// session was killed before the OS reported an exit.
func (s *Session) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:         s.ID.String(),
		Shell:      s.Shell,
		WorkingDir: s.WorkingDir,
		Cols:       s.cols,
		Rows:       s.rows,
		Pid:        s.handle.Pid(),
		State:      s.State().String(),
		ExitCode:   s.exitCode,
		StartedAt:  s.StartedAt,
	}
}

func (s *Session) handleExit(code int) {
	s.mu.Lock()
	if s.State() != StateExited {
		s.exitCode = code
	}
	s.mu.Unlock()
	s.dispose(reasonExited)
}

// dispose is the single cleanup routine. Only the caller that moves the
// state to Exited runs it.
func (s *Session) dispose(reason string) {
	for {
		cur := s.state.Load()
		if State(cur) == StateExited {
			return
		}
		if s.state.CompareAndSwap(cur, int32(StateExited)) {
			break
		}
	}

	s.router.close(s.topic)

	if err := s.handle.Kill(); err != nil {
		s.logger.Debug("Kill signal failed",
			zap.String("session_id", s.ID.String()),
			zap.Error(err),
		)
	}

	if s.onDispose != nil {
		s.onDispose(s, reason)
	}

	s.logger.Info("Session ended",
		zap.String("session_id", s.ID.String()),
		zap.String("reason", reason),
		zap.Int("exit_code", s.ExitCode()),
	)

	s.mu.Lock()
	fns := s.exitFns
	s.exitFns = nil
	s.done = true
	s.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
