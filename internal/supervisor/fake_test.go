package supervisor

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/loykin/reloadr/internal/history"
	"github.com/loykin/reloadr/internal/process"
)

type fakeChild struct {
	pid     int
	started time.Time
	onExit  ExitFunc

	mu         sync.Mutex
	alive      bool
	ignoreTerm bool
	signals    int
	killed     bool
}

func (f *fakeChild) PID() int             { return f.pid }
func (f *fakeChild) StartedAt() time.Time { return f.started }

func (f *fakeChild) Signal(os.Signal) error {
	f.mu.Lock()
	if !f.alive {
		f.mu.Unlock()
		return errors.New("process already finished")
	}
	f.signals++
	ignore := f.ignoreTerm
	f.mu.Unlock()
	if !ignore {
		f.exit(process.ExitStatus{Code: -1, Signal: "terminated"})
	}
	return nil
}

func (f *fakeChild) Kill() error {
	f.mu.Lock()
	f.killed = true
	f.mu.Unlock()
	f.exit(process.ExitStatus{Code: -1, Signal: "killed"})
	return nil
}

// exit marks the child dead and delivers the notification once.
func (f *fakeChild) exit(st process.ExitStatus) {
	f.mu.Lock()
	if !f.alive {
		f.mu.Unlock()
		return
	}
	f.alive = false
	f.mu.Unlock()
	if f.onExit != nil {
		go f.onExit(f, st)
	}
}

func (f *fakeChild) isAlive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeChild) signalCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signals
}

type fakeLauncher struct {
	mu         sync.Mutex
	nextPID    int
	children   []*fakeChild
	failNext   error
	ignoreTerm bool
}

func (l *fakeLauncher) Launch(onExit ExitFunc) (Child, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failNext; err != nil {
		l.failNext = nil
		return nil, err
	}
	l.nextPID++
	c := &fakeChild{
		pid:        1000 + l.nextPID,
		started:    time.Now(),
		onExit:     onExit,
		alive:      true,
		ignoreTerm: l.ignoreTerm,
	}
	l.children = append(l.children, c)
	return c, nil
}

func (l *fakeLauncher) alive(pid int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.children {
		if c.pid == pid {
			return c.isAlive()
		}
	}
	return false
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.children)
}

func (l *fakeLauncher) child(i int) *fakeChild {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.children[i]
}

func (l *fakeLauncher) setFailNext(err error) {
	l.mu.Lock()
	l.failNext = err
	l.mu.Unlock()
}

func (l *fakeLauncher) setIgnoreTerm(v bool) {
	l.mu.Lock()
	l.ignoreTerm = v
	l.mu.Unlock()
}

type memRecorder struct {
	mu     sync.Mutex
	events []history.Event
}

func (r *memRecorder) Record(e history.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *memRecorder) count(t history.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func exitTerminated() process.ExitStatus {
	return process.ExitStatus{Code: -1, Signal: "terminated", ExitedAt: time.Now()}
}

func exitCode(code int) process.ExitStatus {
	return process.ExitStatus{Code: code, ExitedAt: time.Now()}
}
