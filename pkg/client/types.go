package client

import (
	"github.com/loykin/reloadr/internal/history"
	"github.com/loykin/reloadr/internal/supervisor"
)

// Status is the supervisor snapshot returned by GET /status.
type Status = supervisor.Status

// Event is one restart history entry returned by GET /history.
type Event = history.Event

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
