//go:build !windows

package infisical

import (
	"os"
	"syscall"
)

// exitStatus maps a finished process to the launcher's exit code. Processes
// killed by a signal report 128+signal, like a POSIX shell.
func exitStatus(state *os.ProcessState) int {
	if code := state.ExitCode(); code >= 0 {
		return code
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return 1
}
