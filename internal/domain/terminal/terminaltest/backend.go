// Package terminaltest provides an in-memory pty backend for tests.
package terminaltest

import (
	"bytes"
	"errors"
	"os"
	"sync"

	"github.com/GriffinCanCode/termhost/internal/providers/pty"
)

// Backend is a fake pty backend. Spawned handles never start a process;
// tests drive them through Emit and Exit.
type Backend struct {
	mu        sync.Mutex
	available bool
	echo      bool
	failNext  error
	onSpawn   func(*Handle)
	nextPid   int
	handles   []*Handle
	spawned   []pty.SpawnOptions
}

// NewBackend returns an available backend.
func NewBackend() *Backend {
	return &Backend{available: true, nextPid: 1000}
}

// SetAvailable changes the capability probe result.
func (b *Backend) SetAvailable(available bool) {
	b.mu.Lock()
	b.available = available
	b.mu.Unlock()
}

// SetEcho makes handles spawned afterwards echo their input as output.
func (b *Backend) SetEcho(echo bool) {
	b.mu.Lock()
	b.echo = echo
	b.mu.Unlock()
}

// FailNext makes the next Spawn return err.
func (b *Backend) FailNext(err error) {
	b.mu.Lock()
	b.failNext = err
	b.mu.Unlock()
}

// OnSpawn registers fn to run with every new handle before Spawn returns.
func (b *Backend) OnSpawn(fn func(*Handle)) {
	b.mu.Lock()
	b.onSpawn = fn
	b.mu.Unlock()
}

// IsAvailable implements terminal.Backend.
func (b *Backend) IsAvailable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.available
}

// Spawn implements terminal.Backend.
func (b *Backend) Spawn(opts pty.SpawnOptions) (pty.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.available {
		return nil, pty.ErrUnavailable
	}
	if err := b.failNext; err != nil {
		b.failNext = nil
		return nil, err
	}

	b.nextPid++
	h := &Handle{pid: b.nextPid, echo: b.echo, cols: opts.Cols, rows: opts.Rows}
	b.handles = append(b.handles, h)
	b.spawned = append(b.spawned, opts)
	if b.onSpawn != nil {
		b.onSpawn(h)
	}
	return h, nil
}

// Handles returns every handle spawned so far, in order.
func (b *Backend) Handles() []*Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Handle(nil), b.handles...)
}

// Last returns the most recently spawned handle, or nil.
func (b *Backend) Last() *Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.handles) == 0 {
		return nil
	}
	return b.handles[len(b.handles)-1]
}

// Spawned returns the options of every successful Spawn.
func (b *Backend) Spawned() []pty.SpawnOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]pty.SpawnOptions(nil), b.spawned...)
}

// Handle is a fake process handle.
type Handle struct {
	pid  int
	echo bool

	mu       sync.Mutex
	input    bytes.Buffer
	pending  [][]byte
	dataFns  []func([]byte)
	exitFns  []func(int)
	exited   bool
	exitCode int
	kills    int
	cols     int
	rows     int
}

// Pid implements pty.Handle.
func (h *Handle) Pid() int { return h.pid }

// Write implements pty.Handle. Input is recorded, and echoed when enabled.
func (h *Handle) Write(p []byte) (int, error) {
	h.mu.Lock()
	if h.exited || h.kills > 0 {
		h.mu.Unlock()
		return 0, os.ErrClosed
	}
	h.input.Write(p)
	echo := h.echo
	h.mu.Unlock()

	if echo {
		h.Emit(p)
	}
	return len(p), nil
}

// Resize implements pty.Handle.
func (h *Handle) Resize(cols, rows int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exited {
		return os.ErrClosed
	}
	h.cols, h.rows = cols, rows
	return nil
}

// Kill implements pty.Handle. The fake process exits with -1 right away.
func (h *Handle) Kill() error {
	h.mu.Lock()
	h.kills++
	h.mu.Unlock()
	h.Exit(-1)
	return nil
}

// OnData implements pty.Handle. Output emitted before the first listener
// is held back and delivered on registration.
func (h *Handle) OnData(fn func([]byte)) {
	h.mu.Lock()
	h.dataFns = append(h.dataFns, fn)
	pending := h.pending
	h.pending = nil
	h.mu.Unlock()

	for _, chunk := range pending {
		fn(chunk)
	}
}

// OnExit implements pty.Handle.
func (h *Handle) OnExit(fn func(int)) {
	h.mu.Lock()
	if h.exited {
		code := h.exitCode
		h.mu.Unlock()
		fn(code)
		return
	}
	h.exitFns = append(h.exitFns, fn)
	h.mu.Unlock()
}

// Emit pushes output to the data listeners, like the reader goroutine.
func (h *Handle) Emit(data []byte) {
	h.mu.Lock()
	if h.exited {
		h.mu.Unlock()
		return
	}
	if len(h.dataFns) == 0 {
		h.pending = append(h.pending, append([]byte(nil), data...))
		h.mu.Unlock()
		return
	}
	fns := h.dataFns
	h.mu.Unlock()

	for _, fn := range fns {
		fn(data)
	}
}

// Exit simulates the process ending with code. Only the first call counts.
func (h *Handle) Exit(code int) {
	h.mu.Lock()
	if h.exited {
		h.mu.Unlock()
		return
	}
	h.exited = true
	h.exitCode = code
	fns := h.exitFns
	h.exitFns = nil
	h.mu.Unlock()

	for _, fn := range fns {
		fn(code)
	}
}

// Input returns everything written to the handle.
func (h *Handle) Input() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]byte(nil), h.input.Bytes()...)
}

// Kills returns how many times Kill was called.
func (h *Handle) Kills() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.kills
}

// Exited reports whether the fake process has ended.
func (h *Handle) Exited() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exited
}

// Size returns the current geometry.
func (h *Handle) Size() (cols, rows int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cols, h.rows
}

// ErrSpawn is a convenience OS failure for FailNext.
var ErrSpawn = &pty.SpawnError{Kind: pty.OSFailure, Path: "/bin/fake", Err: errors.New("exec format error")}
