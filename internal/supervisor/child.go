package supervisor

import (
	"os"
	"time"

	"github.com/loykin/reloadr/internal/process"
)

// Child is the handle of a launched build-and-run process.
type Child interface {
	PID() int
	StartedAt() time.Time
	Signal(sig os.Signal) error
	Kill() error
}

// ExitFunc receives the exit notification of a child. It is called exactly
// once per child, from a goroutine other than the caller of Launch.
type ExitFunc func(c Child, st process.ExitStatus)

// Launcher starts a new child and arranges for onExit to be called when it
// ends.
type Launcher interface {
	Launch(onExit ExitFunc) (Child, error)
}

type processLauncher struct {
	spec process.Spec
	opts []process.Option
}

// NewProcessLauncher returns a Launcher that starts spec as an OS process.
func NewProcessLauncher(spec process.Spec, opts ...process.Option) Launcher {
	return &processLauncher{spec: spec, opts: opts}
}

func (l *processLauncher) Launch(onExit ExitFunc) (Child, error) {
	opts := append([]process.Option(nil), l.opts...)
	if onExit != nil {
		opts = append(opts, process.WithExitHandler(func(p *process.Process, st process.ExitStatus) {
			onExit(p, st)
		}))
	}
	p, err := process.NewLauncher(l.spec, opts...).Launch()
	if err != nil {
		return nil, err
	}
	return p, nil
}
