// Package history exports supervisor lifecycle events to external stores.
package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventLaunch       EventType = "launch"
	EventExit         EventType = "exit"
	EventLaunchFailed EventType = "launch_failed"
	EventSuperseded   EventType = "superseded"
)

// Event is one entry of the restart history.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Generation uint64    `json:"generation"`
	PID        int       `json:"pid,omitempty"`
	Command    string    `json:"command,omitempty"`
	ExitCode   int       `json:"exit_code,omitempty"`
	Signal     string    `json:"signal,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Lister is implemented by sinks that can read back recent events, newest first.
type Lister interface {
	Recent(ctx context.Context, limit int) ([]Event, error)
}
