package pty

import (
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"
)

const (
	readBufferSize = 32 * 1024
	// drainTimeout bounds how long exit notification waits for the reader
	// after the shell exits; background jobs can keep the pty open.
	drainTimeout = 500 * time.Millisecond
)

// Handle is a running process attached to a pty.
type Handle interface {
	Pid() int
	Write(p []byte) (int, error)
	Resize(cols, rows int) error
	// Kill hangs up the terminal and escalates to SIGKILL after the grace
	// period. It returns immediately and is safe to call more than once.
	Kill() error
	// OnData registers an output listener. The slice is only valid for the
	// duration of the call.
	OnData(fn func(data []byte))
	// OnExit registers an exit listener. It is invoked immediately when the
	// process has already exited.
	OnExit(fn func(code int))
}

// process implements Handle for a shell started with creack/pty.
type process struct {
	cmd    *exec.Cmd
	ptmx   *os.File
	grace  time.Duration
	logger *zap.Logger

	mu        sync.Mutex
	dataFns   []func([]byte)
	exitFns   []func(int)
	exited    bool
	exitCode  int
	killTimer *time.Timer

	attached   chan struct{} // closed when the first data listener registers
	attachOnce sync.Once
	closing    chan struct{} // closed with the pty master
	closeOnce  sync.Once
	killOnce   sync.Once
	readDone   chan struct{}
	waitDone   chan struct{}
}

func newProcess(cmd *exec.Cmd, ptmx *os.File, grace time.Duration, logger *zap.Logger) *process {
	return &process{
		cmd:      cmd,
		ptmx:     ptmx,
		grace:    grace,
		logger:   logger,
		exitCode: -1,
		attached: make(chan struct{}),
		closing:  make(chan struct{}),
		readDone: make(chan struct{}),
		waitDone: make(chan struct{}),
	}
}

func (p *process) Pid() int {
	return p.cmd.Process.Pid
}

func (p *process) Write(data []byte) (int, error) {
	return p.ptmx.Write(data)
}

func (p *process) Resize(cols, rows int) error {
	size, err := winsize(cols, rows)
	if err != nil {
		return err
	}
	return pty.Setsize(p.ptmx, size)
}

func (p *process) OnData(fn func([]byte)) {
	p.mu.Lock()
	p.dataFns = append(p.dataFns, fn)
	p.mu.Unlock()

	p.attachOnce.Do(func() { close(p.attached) })
}

func (p *process) OnExit(fn func(int)) {
	p.mu.Lock()
	if p.exited {
		code := p.exitCode
		p.mu.Unlock()
		fn(code)
		return
	}
	p.exitFns = append(p.exitFns, fn)
	p.mu.Unlock()
}

func (p *process) Kill() error {
	var err error
	p.killOnce.Do(func() {
		p.closePTY()

		select {
		case <-p.waitDone:
			return
		default:
		}

		err = hangup(p.cmd.Process)
		if p.grace <= 0 {
			p.forceKill()
			return
		}

		p.mu.Lock()
		p.killTimer = time.AfterFunc(p.grace, p.forceKill)
		p.mu.Unlock()
	})
	return err
}

func (p *process) forceKill() {
	select {
	case <-p.waitDone:
		return
	default:
	}
	if err := kill(p.cmd.Process); err != nil {
		p.logger.Debug("Force kill failed", zap.Int("pid", p.Pid()), zap.Error(err))
	}
}

func (p *process) closePTY() {
	p.closeOnce.Do(func() {
		close(p.closing)
		p.ptmx.Close()
	})
}

// readLoop pushes pty output to the data listeners until the pty closes.
func (p *process) readLoop() {
	defer close(p.readDone)

	select {
	case <-p.attached:
	case <-p.closing:
		return
	}

	buf := make([]byte, readBufferSize)
	for {
		n, err := p.ptmx.Read(buf)
		if n > 0 {
			p.mu.Lock()
			fns := p.dataFns
			p.mu.Unlock()
			for _, fn := range fns {
				fn(buf[:n])
			}
		}
		if err != nil {
			// EIO once the slave side is gone, ErrClosed after Kill.
			return
		}
	}
}

// waitLoop reaps the process and fires exit listeners once.
func (p *process) waitLoop() {
	err := p.cmd.Wait()
	close(p.waitDone)

	code := -1
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}
	if err != nil && p.cmd.ProcessState == nil {
		p.logger.Debug("Wait failed", zap.Int("pid", p.Pid()), zap.Error(err))
	}

	select {
	case <-p.readDone:
	case <-time.After(drainTimeout):
	}
	p.closePTY()

	p.mu.Lock()
	if p.killTimer != nil {
		p.killTimer.Stop()
	}
	p.exited = true
	p.exitCode = code
	fns := p.exitFns
	p.exitFns = nil
	p.mu.Unlock()

	for _, fn := range fns {
		fn(code)
	}
}
