// Package client talks to the HTTP API of a running reloadr supervisor.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL matches the address used in the documentation examples.
const DefaultBaseURL = "http://localhost:7070"

// Client provides HTTP client functionality to communicate with a supervisor
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger // Optional logger for client operations
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: 10 * time.Second,
	}
}

// New creates a new API client
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// BaseURL returns the normalized API base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// IsReachable checks if the supervisor API answers
func (c *Client) IsReachable(ctx context.Context) bool {
	_, err := c.Status(ctx)
	if err != nil {
		c.logger.Debug("supervisor unreachable", "error", err)
		return false
	}
	return true
}

// Status fetches the supervisor snapshot
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.do(ctx, http.MethodGet, "/status", http.StatusOK, &st)
	return st, err
}

// Restart requests a restart attempt; it returns once the request was accepted
func (c *Client) Restart(ctx context.Context) error {
	c.logger.Debug("requesting restart")
	return c.do(ctx, http.MethodPost, "/restart", http.StatusAccepted, nil)
}

// History fetches up to limit recent events, newest first. limit <= 0 uses
// the server default.
func (c *Client) History(ctx context.Context, limit int) ([]Event, error) {
	path := "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var events []Event
	err := c.do(ctx, http.MethodGet, path, http.StatusOK, &events)
	return events, err
}

func (c *Client) do(ctx context.Context, method, path string, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("supervisor API unreachable at %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != want {
		return c.handleErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// handleErrorResponse turns an unexpected status into an error
func (c *Client) handleErrorResponse(resp *http.Response) error {
	var errorResp ErrorResponse
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(b, &errorResp); err != nil || errorResp.Error == "" {
		c.logger.Debug("non-JSON error response", "status", resp.StatusCode)
		return fmt.Errorf("API error: %s", resp.Status)
	}
	c.logger.Debug("API request failed", "error", errorResp.Error, "status", resp.StatusCode)
	return fmt.Errorf("API error: %s", errorResp.Error)
}
