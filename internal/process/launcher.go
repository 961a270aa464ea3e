package process

import (
	"fmt"
	"io"
	"os"
	"time"
)

// ExitHandler is called exactly once per launched process after it was reaped.
type ExitHandler func(p *Process, st ExitStatus)

// Launcher starts children from a fixed Spec. The child's standard streams
// are the supervisor's own unless overridden with WithStdio.
type Launcher struct {
	spec   Spec
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	onExit ExitHandler
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithStdio overrides the child's standard streams.
func WithStdio(in io.Reader, out, errOut io.Writer) Option {
	return func(l *Launcher) {
		l.stdin, l.stdout, l.stderr = in, out, errOut
	}
}

// WithExitHandler registers fn as the exit notification.
func WithExitHandler(fn ExitHandler) Option {
	return func(l *Launcher) { l.onExit = fn }
}

// NewLauncher returns a Launcher for spec.
func NewLauncher(spec Spec, opts ...Option) *Launcher {
	l := &Launcher{spec: spec, stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Spec returns the launcher's spec.
func (l *Launcher) Spec() Spec { return l.spec }

// Launch starts a new child. Spawn errors are returned as is; there is no retry.
// The exit handler fires from a dedicated goroutine once the child is reaped.
func (l *Launcher) Launch() (*Process, error) {
	if err := l.spec.Validate(); err != nil {
		return nil, err
	}
	cmd := l.spec.BuildCommand()
	if l.spec.WorkDir != "" {
		cmd.Dir = l.spec.WorkDir
	}
	if l.spec.Env != nil {
		cmd.Env = l.spec.Env
	}
	cmd.Stdin, cmd.Stdout, cmd.Stderr = l.stdin, l.stdout, l.stderr
	configureSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", l.spec.Command, err)
	}
	p := &Process{
		name:      l.spec.Name,
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	go l.wait(p)
	return p, nil
}

// wait is the only caller of cmd.Wait, so the child is reaped exactly once.
func (l *Launcher) wait(p *Process) {
	st := exitStatusFrom(p.cmd.Wait())
	p.markExited(st)
	if l.onExit != nil {
		l.onExit(p, st)
	}
}
