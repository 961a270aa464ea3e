package history

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Recorder queues events for a Sink and sends them from a single worker, so
// callers on latency-sensitive paths never wait on I/O. When the queue is
// full the event is dropped with a warning.
type Recorder struct {
	sink    Sink
	log     *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	ch     chan Event
	done   chan struct{}
}

// NewRecorder starts the worker. size <= 0 selects a default queue length.
func NewRecorder(sink Sink, log *slog.Logger, size int) *Recorder {
	if size <= 0 {
		size = 256
	}
	if log == nil {
		log = slog.Default()
	}
	r := &Recorder{
		sink:    sink,
		log:     log,
		timeout: 5 * time.Second,
		ch:      make(chan Event, size),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues e. It never blocks.
func (r *Recorder) Record(e Event) {
	if r == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- e:
	default:
		r.log.Warn("history queue full, dropping event", "type", e.Type, "generation", e.Generation)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.sink.Send(ctx, e); err != nil {
			r.log.Warn("history send failed", "type", e.Type, "error", err)
		}
		cancel()
	}
}

// Close drains queued events and closes the sink.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()
	<-r.done
	return r.sink.Close()
}
