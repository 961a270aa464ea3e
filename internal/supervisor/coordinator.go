// Package supervisor keeps one build-and-run child alive and restarts it on
// change notifications.
//
// All coordinator state is owned by a single goroutine that runs tasks from
// a channel. Waiting for the old child to die is a chain of timer-posted
// continuations, so a newer change can overtake an older restart attempt at
// any poll; the older attempt notices its generation is stale and abandons
// without launching.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/loykin/reloadr/internal/detector"
	"github.com/loykin/reloadr/internal/history"
	"github.com/loykin/reloadr/internal/metrics"
	"github.com/loykin/reloadr/internal/process"
)

// Restart reasons.
const (
	ReasonFSNotify = "fsnotify"
	ReasonAPI      = "api"
	ReasonSignal   = "sighup"
)

const (
	DefaultPollInterval    = 200 * time.Millisecond
	DefaultShutdownTimeout = 5 * time.Second
)

var (
	ErrNotStarted     = errors.New("supervisor: not started")
	ErrAlreadyStarted = errors.New("supervisor: already started")
	ErrClosed         = errors.New("supervisor: closed")
)

const (
	stateNew int32 = iota
	stateRunning
	stateClosing
	stateClosed
)

// Recorder receives history events. *history.Recorder satisfies it.
type Recorder interface {
	Record(e history.Event)
}

// Options configures a Coordinator. Launcher is required.
type Options struct {
	Launcher        Launcher
	Prober          func(pid int) bool // defaults to detector.Alive
	Signal          os.Signal          // defaults to SIGTERM
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
	PIDFile         string // written after each launch, removed on shutdown
	Command         string // reported in history events
	History         Recorder
	Logger          *slog.Logger
}

// Status is a consistent snapshot of the coordinator.
type Status struct {
	Generation uint64              `json:"generation"`
	PID        int                 `json:"pid"`
	Running    bool                `json:"running"`
	Launches   int                 `json:"launches"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	LastExit   *process.ExitStatus `json:"last_exit,omitempty"`
	LastError  string              `json:"last_error,omitempty"`
}

// Coordinator owns the change generation and the tracked child.
type Coordinator struct {
	opts  Options
	log   *slog.Logger
	state atomic.Int32
	tasks chan func()
	done  chan struct{}

	// loop-owned
	generation    uint64
	tracked       Child
	trackedExited bool
	launches      int
	lastExit      *process.ExitStatus
	lastError     string
	closing       bool
	stopped       bool
}

// New validates opts and returns an idle Coordinator.
func New(opts Options) (*Coordinator, error) {
	if opts.Launcher == nil {
		return nil, errors.New("supervisor: launcher is required")
	}
	if opts.Prober == nil {
		opts.Prober = detector.Alive
	}
	if opts.Signal == nil {
		opts.Signal = syscall.SIGTERM
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		opts:  opts,
		log:   log.With("component", "supervisor"),
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}, nil
}

// Start runs the loop and performs the initial launch. A failed initial
// launch stops the coordinator and is returned.
func (c *Coordinator) Start() error {
	if !c.state.CompareAndSwap(stateNew, stateRunning) {
		return ErrAlreadyStarted
	}
	go c.run()
	reply := make(chan error, 1)
	c.post(func() { reply <- c.launch(0) })
	if err := <-reply; err != nil {
		c.state.Store(stateClosing)
		c.post(c.finish)
		<-c.done
		return fmt.Errorf("initial launch: %w", err)
	}
	return nil
}

// Done is closed once the loop has stopped.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// OnChange starts a restart attempt. Attempts overtaken by a later call are
// abandoned without launching.
func (c *Coordinator) OnChange(reason string) error {
	switch c.state.Load() {
	case stateNew:
		return ErrNotStarted
	case stateRunning:
	default:
		return ErrClosed
	}
	if !c.post(func() { c.change(reason) }) {
		return ErrClosed
	}
	return nil
}

// Snapshot returns the current status as seen by the loop.
func (c *Coordinator) Snapshot() (Status, error) {
	if c.state.Load() == stateNew {
		return Status{}, ErrNotStarted
	}
	reply := make(chan Status, 1)
	if !c.post(func() { reply <- c.status() }) {
		return Status{}, ErrClosed
	}
	// tasks still queued when the loop stops are never run
	select {
	case s := <-reply:
		return s, nil
	case <-c.done:
		select {
		case s := <-reply:
			return s, nil
		default:
			return Status{}, ErrClosed
		}
	}
}

// Shutdown abandons pending restarts, signals the tracked child and kills it
// after the shutdown timeout. It returns once the loop stopped or ctx ends.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	if !c.state.CompareAndSwap(stateRunning, stateClosing) {
		if c.state.Load() == stateNew {
			return ErrNotStarted
		}
		select {
		case <-c.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.post(c.beginShutdown)
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) run() {
	defer func() {
		c.state.Store(stateClosed)
		close(c.done)
	}()
	for fn := range c.tasks {
		fn()
		if c.stopped {
			return
		}
	}
}

// post hands fn to the loop. It reports false once the loop has stopped.
func (c *Coordinator) post(fn func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.tasks <- fn:
		return true
	case <-c.done:
		return false
	}
}

// after posts fn to the loop once d elapsed.
func (c *Coordinator) after(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { c.post(fn) })
}

func (c *Coordinator) change(reason string) {
	if c.closing {
		return
	}
	c.generation++
	mine := c.generation
	metrics.IncChange(reason)
	metrics.SetGeneration(mine)
	c.log.Info("source file changed, restarting", "generation", mine, "reason", reason)
	c.awaitTermination(mine, time.Now())
}

// awaitTermination signals the tracked child until the prober reports it
// gone, then launches a replacement if mine is still the newest generation.
func (c *Coordinator) awaitTermination(mine uint64, since time.Time) {
	if c.closing {
		return
	}
	if c.generation != mine {
		metrics.IncSuperseded()
		c.log.Debug("restart superseded", "generation", mine, "current", c.generation)
		c.record(history.Event{Type: history.EventSuperseded, Generation: mine})
		return
	}
	if c.tracked != nil && c.opts.Prober(c.tracked.PID()) {
		if err := c.tracked.Signal(c.opts.Signal); err != nil {
			c.log.Debug("signal delivery failed", "pid", c.tracked.PID(), "error", err)
		} else {
			metrics.IncSignal()
		}
		c.after(c.opts.PollInterval, func() { c.awaitTermination(mine, since) })
		return
	}
	metrics.ObserveTermination(time.Since(since).Seconds())
	if err := c.launch(mine); err != nil {
		c.log.Error("launch failed", "generation", mine, "error", err)
	}
}

func (c *Coordinator) launch(gen uint64) error {
	child, err := c.opts.Launcher.Launch(c.exitFunc())
	if err != nil {
		c.lastError = err.Error()
		metrics.IncLaunchFailure()
		c.record(history.Event{Type: history.EventLaunchFailed, Generation: gen, Command: c.opts.Command, Error: err.Error()})
		return err
	}
	c.tracked = child
	c.trackedExited = false
	c.launches++
	c.lastError = ""
	if gen > 0 {
		metrics.IncRestart()
	}
	metrics.SetChildRunning(true)
	if c.opts.PIDFile != "" {
		if err := detector.WritePIDFile(c.opts.PIDFile, child.PID()); err != nil {
			c.log.Warn("write pid file", "path", c.opts.PIDFile, "error", err)
		}
	}
	c.log.Info("child started", "pid", child.PID(), "generation", gen)
	c.record(history.Event{Type: history.EventLaunch, Generation: gen, PID: child.PID(), Command: c.opts.Command})
	return nil
}

func (c *Coordinator) exitFunc() ExitFunc {
	return func(ch Child, st process.ExitStatus) {
		c.post(func() { c.exited(ch, st) })
	}
}

func (c *Coordinator) exited(ch Child, st process.ExitStatus) {
	c.log.Info("child exited", "pid", ch.PID(), "code", st.Code, "signal", st.Signal)
	metrics.IncChildExit(st.Code)
	c.record(history.Event{
		Type:       history.EventExit,
		Generation: c.generation,
		PID:        ch.PID(),
		ExitCode:   st.Code,
		Signal:     st.Signal,
	})
	if ch != c.tracked {
		return
	}
	c.trackedExited = true
	c.lastExit = &st
	metrics.SetChildRunning(false)
	if c.closing {
		c.finish()
	}
}

func (c *Coordinator) beginShutdown() {
	c.closing = true
	if c.tracked == nil || c.trackedExited {
		c.finish()
		return
	}
	child := c.tracked
	c.log.Info("stopping child", "pid", child.PID())
	if err := child.Signal(c.opts.Signal); err != nil {
		c.log.Debug("signal delivery failed", "pid", child.PID(), "error", err)
	}
	c.after(c.opts.ShutdownTimeout, func() {
		if c.trackedExited {
			return
		}
		c.log.Warn("child did not exit in time, killing", "pid", child.PID(), "timeout", c.opts.ShutdownTimeout)
		_ = child.Kill()
		// the exit notification normally finishes; give up if it never comes
		c.after(c.opts.ShutdownTimeout, c.finish)
	})
}

func (c *Coordinator) finish() {
	if c.stopped {
		return
	}
	if c.opts.PIDFile != "" {
		if err := os.Remove(c.opts.PIDFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.log.Warn("remove pid file", "path", c.opts.PIDFile, "error", err)
		}
	}
	metrics.SetChildRunning(false)
	c.stopped = true
}

func (c *Coordinator) status() Status {
	s := Status{
		Generation: c.generation,
		Launches:   c.launches,
		LastExit:   c.lastExit,
		LastError:  c.lastError,
	}
	if c.tracked != nil {
		s.PID = c.tracked.PID()
		s.Running = !c.trackedExited
		at := c.tracked.StartedAt()
		s.StartedAt = &at
	}
	return s
}

func (c *Coordinator) record(e history.Event) {
	if c.opts.History == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	c.opts.History.Record(e)
}
