package pty

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// output collects data pushed by a handle.
type output struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (o *output) write(b []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buf.Write(b)
}

func (o *output) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.String()
}

func requirePTY(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend(zaptest.NewLogger(t))
	if !b.IsAvailable() {
		t.Skip("pseudo-terminals not available in this environment")
	}
	return b
}

func waitExit(t *testing.T, h Handle) int {
	t.Helper()
	codes := make(chan int, 1)
	h.OnExit(func(code int) { codes <- code })
	select {
	case code := <-codes:
		return code
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit")
		return 0
	}
}

func TestBackendUnavailable(t *testing.T) {
	calls := 0
	b := newBackend(zaptest.NewLogger(t), func() error {
		calls++
		return errors.New("no /dev/ptmx")
	})

	assert.False(t, b.IsAvailable())
	assert.False(t, b.IsAvailable())
	assert.Equal(t, 1, calls, "probe result should be cached")

	h, err := b.Spawn(SpawnOptions{Shell: "/bin/sh", Dir: t.TempDir()})
	assert.Nil(t, h)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "no /dev/ptmx")
}

func TestSpawnInvalidWorkingDirectory(t *testing.T) {
	b := newBackend(zaptest.NewLogger(t), func() error { return nil })

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	for name, dir := range map[string]string{
		"missing":       filepath.Join(t.TempDir(), "missing"),
		"not directory": file,
		"empty":         "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := b.Spawn(SpawnOptions{Shell: "/bin/sh", Dir: dir})

			var spawnErr *SpawnError
			require.ErrorAs(t, err, &spawnErr)
			assert.Equal(t, InvalidWorkingDirectory, spawnErr.Kind)
			assert.Equal(t, dir, spawnErr.Path)
		})
	}
}

func TestSpawnUnknownShell(t *testing.T) {
	b := newBackend(zaptest.NewLogger(t), func() error { return nil })

	_, err := b.Spawn(SpawnOptions{Shell: "/definitely/not/a/shell", Dir: t.TempDir()})

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, OSFailure, spawnErr.Kind)
	assert.Equal(t, "os_failure", spawnErr.Kind.String())
}

func TestSpawnDeliversOutputAndExitCode(t *testing.T) {
	b := requirePTY(t)

	h, err := b.Spawn(SpawnOptions{
		Shell: "/bin/sh",
		Args:  []string{"-c", "printf 'hello from pty'; exit 3"},
		Dir:   t.TempDir(),
	})
	require.NoError(t, err)

	var out output
	h.OnData(out.write)

	assert.Equal(t, 3, waitExit(t, h))
	assert.Contains(t, out.String(), "hello from pty")
}

func TestSpawnPassesEnvironmentAndDirectory(t *testing.T) {
	b := requirePTY(t)
	dir := t.TempDir()

	h, err := b.Spawn(SpawnOptions{
		Shell: "/bin/sh",
		Args:  []string{"-c", `printf '%s|%s|%s' "$TERMHOST_TEST" "$TERM" "$(pwd)"`},
		Dir:   dir,
		Env:   []string{"TERMHOST_TEST=marker"},
	})
	require.NoError(t, err)

	var out output
	h.OnData(out.write)
	waitExit(t, h)

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got := out.String()
	assert.Contains(t, got, "marker|xterm-256color|")
	assert.True(t, strings.Contains(got, dir) || strings.Contains(got, resolved), "got %q", got)
}

func TestWriteIsEchoedBack(t *testing.T) {
	b := requirePTY(t)

	h, err := b.Spawn(SpawnOptions{Shell: "cat", Dir: t.TempDir()})
	require.NoError(t, err)
	defer h.Kill()

	var out output
	h.OnData(out.write)

	_, err = h.Write([]byte("ping\n"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return strings.Count(out.String(), "ping") >= 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestResize(t *testing.T) {
	b := requirePTY(t)

	h, err := b.Spawn(SpawnOptions{Shell: "cat", Dir: t.TempDir(), Cols: 100, Rows: 30})
	require.NoError(t, err)
	defer h.Kill()

	assert.NoError(t, h.Resize(132, 43))
	assert.ErrorIs(t, h.Resize(65636, 24), ErrInvalidSize)
	assert.ErrorIs(t, h.Resize(80, MaxDimension+1), ErrInvalidSize)
}

func TestSpawnRejectsOversizedGeometry(t *testing.T) {
	b := requirePTY(t)

	_, err := b.Spawn(SpawnOptions{Shell: "cat", Dir: t.TempDir(), Cols: MaxDimension + 1, Rows: 24})
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestWinsize(t *testing.T) {
	size, err := winsize(MaxDimension, 24)
	require.NoError(t, err)
	assert.EqualValues(t, MaxDimension, size.Cols)
	assert.EqualValues(t, 24, size.Rows)

	_, err = winsize(80, 1<<20)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestKillIsIdempotent(t *testing.T) {
	b := requirePTY(t)

	h, err := b.Spawn(SpawnOptions{Shell: "cat", Dir: t.TempDir(), KillGrace: 100 * time.Millisecond})
	require.NoError(t, err)
	h.OnData(func([]byte) {})

	assert.NoError(t, h.Kill())
	assert.NoError(t, h.Kill())

	waitExit(t, h)
}

func TestKillEscalatesWhenHangupIgnored(t *testing.T) {
	b := requirePTY(t)

	h, err := b.Spawn(SpawnOptions{
		Shell:     "/bin/sh",
		Args:      []string{"-c", "trap '' HUP; while true; do sleep 1; done"},
		Dir:       t.TempDir(),
		KillGrace: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	h.OnData(func([]byte) {})

	require.NoError(t, h.Kill())
	waitExit(t, h)
}

func TestOnExitAfterExitFiresImmediately(t *testing.T) {
	b := requirePTY(t)

	h, err := b.Spawn(SpawnOptions{Shell: "/bin/sh", Args: []string{"-c", "exit 0"}, Dir: t.TempDir()})
	require.NoError(t, err)
	h.OnData(func([]byte) {})
	waitExit(t, h)

	fired := false
	h.OnExit(func(code int) { fired = true })
	assert.True(t, fired)
}

func TestDefaultShell(t *testing.T) {
	t.Setenv("SHELL", "/usr/local/bin/fish")
	assert.Equal(t, "/usr/local/bin/fish", DefaultShell())

	t.Setenv("SHELL", "")
	assert.NotEmpty(t, DefaultShell())
}

func TestSpawnErrorKindString(t *testing.T) {
	assert.Equal(t, "invalid_working_directory", InvalidWorkingDirectory.String())
	assert.Equal(t, "unknown", SpawnErrorKind(42).String())

	err := &SpawnError{Kind: InvalidWorkingDirectory, Path: "/nope", Err: errNotDirectory}
	assert.Contains(t, err.Error(), "/nope")
	assert.ErrorIs(t, err, errNotDirectory)
}
