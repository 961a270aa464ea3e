//go:build !windows

package process

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
)

var signalsByName = map[string]syscall.Signal{
	"HUP":  syscall.SIGHUP,
	"INT":  syscall.SIGINT,
	"QUIT": syscall.SIGQUIT,
	"KILL": syscall.SIGKILL,
	"TERM": syscall.SIGTERM,
	"USR1": syscall.SIGUSR1,
	"USR2": syscall.SIGUSR2,
}

// ParseSignal accepts names like "SIGTERM", "term" or "TERM".
func ParseSignal(name string) (os.Signal, error) {
	key := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(name)), "SIG")
	if sig, ok := signalsByName[key]; ok {
		return sig, nil
	}
	return nil, fmt.Errorf("unknown signal %q", name)
}

// sendSignal delivers sig to the child's process group, falling back to the
// single pid when the group is already gone.
func sendSignal(p *os.Process, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return p.Signal(sig)
	}
	err := syscall.Kill(-p.Pid, s)
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ESRCH) {
		return p.Signal(s)
	}
	return err
}

// forceKill sends SIGKILL to the process group.
func forceKill(p *os.Process) error {
	return sendSignal(p, syscall.SIGKILL)
}
