package process

import (
	"os"
	"os/exec"
	"sync"
	"time"
)

// Process is one launched child. It is created by Launcher.Launch and never
// restarted; a restart produces a new Process.
type Process struct {
	name      string
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time

	mu   sync.Mutex
	exit *ExitStatus
	done chan struct{} // closed once cmd.Wait returns
}

// PID returns the OS process identifier.
func (p *Process) PID() int { return p.pid }

// Name returns the spec name the process was launched from.
func (p *Process) Name() string { return p.name }

// StartedAt returns the launch time.
func (p *Process) StartedAt() time.Time { return p.startedAt }

// Done is closed after the child exited and was reaped.
func (p *Process) Done() <-chan struct{} { return p.done }

// Exit returns the exit status once the child has been reaped.
func (p *Process) Exit() (ExitStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exit == nil {
		return ExitStatus{}, false
	}
	return *p.exit, true
}

// Signal sends sig to the child's process group.
func (p *Process) Signal(sig os.Signal) error {
	return sendSignal(p.cmd.Process, sig)
}

// Kill force-kills the child's process group.
func (p *Process) Kill() error {
	return forceKill(p.cmd.Process)
}

func (p *Process) markExited(st ExitStatus) {
	p.mu.Lock()
	p.exit = &st
	p.mu.Unlock()
	close(p.done)
}
