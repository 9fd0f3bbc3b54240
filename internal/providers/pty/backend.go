package pty

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"
)

const (
	defaultCols = 80
	defaultRows = 24
)

var errNotDirectory = errors.New("not a directory")

// SpawnOptions describes the process to start.
type SpawnOptions struct {
	Shell string
	Args  []string
	// Dir must be an existing directory at call time.
	Dir string
	// Env entries ("KEY=value") appended after the host environment.
	Env  []string
	Cols int
	Rows int
	// KillGrace is how long Kill waits after SIGHUP before sending SIGKILL.
	KillGrace time.Duration
}

// Backend spawns processes behind pseudo-terminals.
type Backend struct {
	logger *zap.Logger
	probe  func() error

	once     sync.Once
	probeErr error
}

// NewBackend creates a backend that probes the OS pty facility on first use.
func NewBackend(logger *zap.Logger) *Backend {
	return newBackend(logger, probePTY)
}

func newBackend(logger *zap.Logger, probe func() error) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{logger: logger, probe: probe}
}

// probePTY allocates and releases one pty pair.
func probePTY() error {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return err
	}
	tty.Close()
	return ptmx.Close()
}

// IsAvailable reports whether ptys can be allocated. The result of the first
// probe is cached for the lifetime of the backend.
func (b *Backend) IsAvailable() bool {
	b.once.Do(func() {
		b.probeErr = b.probe()
		if b.probeErr != nil {
			b.logger.Warn("Pseudo-terminal support unavailable", zap.Error(b.probeErr))
		} else {
			b.logger.Debug("Pseudo-terminal support detected")
		}
	})
	return b.probeErr == nil
}

// Spawn starts opts.Shell attached to a newly allocated pty.
func (b *Backend) Spawn(opts SpawnOptions) (Handle, error) {
	if !b.IsAvailable() {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, b.probeErr)
	}

	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, &SpawnError{Kind: InvalidWorkingDirectory, Path: opts.Dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &SpawnError{Kind: InvalidWorkingDirectory, Path: opts.Dir, Err: errNotDirectory}
	}

	if opts.Cols <= 0 {
		opts.Cols = defaultCols
	}
	if opts.Rows <= 0 {
		opts.Rows = defaultRows
	}
	size, err := winsize(opts.Cols, opts.Rows)
	if err != nil {
		return nil, err
	}

	shellPath, err := exec.LookPath(opts.Shell)
	if err != nil {
		return nil, &SpawnError{Kind: OSFailure, Path: opts.Shell, Err: err}
	}

	cmd := exec.Command(shellPath, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color", "COLORTERM=truecolor")
	cmd.Env = append(cmd.Env, opts.Env...)

	ptmx, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return nil, &SpawnError{Kind: OSFailure, Path: shellPath, Err: err}
	}

	p := newProcess(cmd, ptmx, opts.KillGrace, b.logger)
	go p.readLoop()
	go p.waitLoop()

	b.logger.Debug("Spawned shell",
		zap.String("shell", shellPath),
		zap.String("dir", opts.Dir),
		zap.Int("pid", cmd.Process.Pid),
	)
	return p, nil
}

// DefaultShell returns the platform's default interactive shell.
func DefaultShell() string {
	if runtime.GOOS == "windows" {
		return "powershell.exe"
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	for _, candidate := range []string{"/bin/bash", "/bin/sh"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "/bin/sh"
}

// winsize converts positive geometry to a kernel window size, rejecting
// values that would wrap.
func winsize(cols, rows int) (*pty.Winsize, error) {
	if cols > MaxDimension || rows > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, cols, rows)
	}
	return &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}, nil
}
