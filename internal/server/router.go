package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/reloadr/internal/history"
	"github.com/loykin/reloadr/internal/metrics"
	"github.com/loykin/reloadr/internal/supervisor"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 1000
)

// Controller is the part of the coordinator the HTTP surface drives.
type Controller interface {
	Snapshot() (supervisor.Status, error)
	OnChange(reason string) error
}

// Router provides embeddable HTTP handlers for the supervisor.
// Endpoints:
//
//	GET  {basePath}/status
//	POST {basePath}/restart
//	GET  {basePath}/metrics
//	GET  {basePath}/history?limit=N
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	ctl      Controller
	hist     history.Lister
	basePath string
}

// NewRouter constructs a Router. hist may be nil when history is disabled
// or the sink cannot be read back.
func NewRouter(ctl Controller, hist history.Lister, basePath string) *Router {
	return &Router{ctl: ctl, hist: hist, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.POST("/restart", r.handleRestart)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	group.GET("/history", r.handleHistory)
	return g
}

// NewServer binds addr and serves the router in the background. Bind errors
// are returned; the caller shuts the server down with http.Server.Shutdown.
func NewServer(addr, basePath string, ctl Controller, hist history.Lister) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	r := NewRouter(ctl, hist, basePath)
	server := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.Serve(ln) }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func statusFor(err error) int {
	if errors.Is(err, supervisor.ErrClosed) || errors.Is(err, supervisor.ErrNotStarted) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (r *Router) handleStatus(c *gin.Context) {
	st, err := r.ctl.Snapshot()
	if err != nil {
		writeJSON(c, statusFor(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) handleRestart(c *gin.Context) {
	if err := r.ctl.OnChange(supervisor.ReasonAPI); err != nil {
		writeJSON(c, statusFor(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusAccepted, okResp{OK: true})
}

func (r *Router) handleHistory(c *gin.Context) {
	if r.hist == nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "history is not enabled"})
		return
	}
	limit := defaultHistoryLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	events, err := r.hist.Recent(c.Request.Context(), limit)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if events == nil {
		events = []history.Event{}
	}
	writeJSON(c, http.StatusOK, events)
}
