// Package pty spawns shell processes attached to pseudo-terminals.
//
// The Backend probes once whether the OS can allocate a pty and fails closed
// when it cannot: every Spawn then returns ErrUnavailable instead of failing
// somewhere inside session creation.
//
// A Handle owns its process and pty master exclusively. Output is pushed to
// OnData listeners from a reader goroutine owned by the handle; reading
// starts when the first data listener registers so the first bytes the shell
// prints are not lost. OnExit listeners fire exactly once, after the reader
// has drained.
//
// Example Usage:
//
//	backend := pty.NewBackend(logger)
//	h, err := backend.Spawn(pty.SpawnOptions{Shell: "/bin/bash", Dir: home})
//	h.OnData(func(b []byte) { os.Stdout.Write(b) })
//	h.OnExit(func(code int) { log.Printf("exited with %d", code) })
//	h.Write([]byte("ls\n"))
//	h.Kill()
package pty
