//go:build unix

package catalog

import "syscall"

// isProcessRunning checks if a process with given PID is running on Unix systems
func isProcessRunning(pid int) bool {
	// Signal 0 only checks whether the process can be signalled
	err := syscall.Kill(pid, syscall.Signal(0))
	if err == nil {
		return true
	}

	switch err {
	case syscall.ESRCH:
		return false
	case syscall.EPERM:
		// Exists, owned by someone else
		return true
	}
	return false
}
