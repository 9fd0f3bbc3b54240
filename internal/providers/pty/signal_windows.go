//go:build windows

package pty

import "os"

// Windows has no hangup signal; closing the console ends the shell.
func hangup(proc *os.Process) error {
	return nil
}

func kill(proc *os.Process) error {
	return proc.Kill()
}
