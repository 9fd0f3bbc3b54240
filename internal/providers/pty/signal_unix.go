//go:build !windows

package pty

import (
	"os"

	"golang.org/x/sys/unix"
)

// The shell is started with Setsid, so its pid is also its process group id
// and signalling -pid reaches every job it started.

func hangup(proc *os.Process) error {
	return unix.Kill(-proc.Pid, unix.SIGHUP)
}

func kill(proc *os.Process) error {
	if err := unix.Kill(-proc.Pid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		return proc.Kill()
	}
	return nil
}
