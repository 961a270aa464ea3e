//go:build windows

package process

import (
	"fmt"
	"os"
	"strings"
)

// ParseSignal maps termination names to the signals Windows can deliver.
func ParseSignal(name string) (os.Signal, error) {
	switch strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(name)), "SIG") {
	case "INT":
		return os.Interrupt, nil
	case "TERM", "KILL":
		return os.Kill, nil
	}
	return nil, fmt.Errorf("unknown signal %q", name)
}

// sendSignal terminates the process; Windows has no graceful signal for it.
func sendSignal(p *os.Process, _ os.Signal) error {
	return p.Kill()
}

func forceKill(p *os.Process) error {
	return p.Kill()
}
