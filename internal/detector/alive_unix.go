//go:build !windows

package detector

import (
	"bytes"
	"errors"
	"os"
	"runtime"
	"strconv"
	"syscall"
)

// Alive reports whether pid refers to an existing process. It sends signal 0,
// which performs the existence and permission checks without delivering anything.
// A process we are not allowed to signal still exists, so EPERM counts as alive.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if !aliveFromErr(syscall.Kill(pid, 0)) {
		return false
	}
	// An exited child that has not been reaped yet still answers signal 0.
	if runtime.GOOS == "linux" && isZombieLinux(pid) {
		return false
	}
	return true
}

// aliveFromErr maps the result of kill(pid, 0) to liveness.
func aliveFromErr(err error) bool {
	return err == nil || errors.Is(err, syscall.EPERM)
}

// isZombieLinux returns true if /proc/<pid>/status reports a zombie state (Z).
func isZombieLinux(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
