// Package reloadr restarts a build-and-run command whenever a watched source
// file changes. The cmd/reloadr binary is a thin CLI over this package; it
// can also be embedded.
package reloadr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/reloadr/internal/config"
	"github.com/loykin/reloadr/internal/history"
	"github.com/loykin/reloadr/internal/history/factory"
	"github.com/loykin/reloadr/internal/logger"
	"github.com/loykin/reloadr/internal/metrics"
	"github.com/loykin/reloadr/internal/server"
	"github.com/loykin/reloadr/internal/supervisor"
	"github.com/loykin/reloadr/internal/watch"
)

// Re-export the types embedders need.

type Config = config.Config

type Status = supervisor.Status

type Event = history.Event

// LoadConfig reads a TOML file (optional) plus RELOADR_* environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	c, err := config.Load(path, nil)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// RegisterMetrics registers the supervisor collectors with r.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

// RecentHistory reads up to limit events, newest first, straight from the
// history store at dsn.
func RecentHistory(ctx context.Context, dsn string, limit int) ([]Event, error) {
	sink, err := factory.NewSinkFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sink.Close() }()
	lister, ok := sink.(history.Lister)
	if !ok {
		return nil, errors.New("history store does not support listing; query it directly")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return lister.Recent(ctx, limit)
}

// Run launches the child, watches the file and blocks until ctx is cancelled
// or SIGINT/SIGTERM arrives. SIGHUP forces a restart. Console logs go to
// console. A failed initial launch is returned immediately.
func Run(ctx context.Context, cfg *Config, console io.Writer) error {
	log, closer, err := logger.New(cfg.Log, console)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	sig, err := cfg.TermSignal()
	if err != nil {
		return err
	}
	spec, err := cfg.ProcessSpec()
	if err != nil {
		return err
	}
	if err := RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	var (
		rec    supervisor.Recorder
		lister history.Lister
	)
	if cfg.History.DSN != "" {
		sink, err := factory.NewSinkFromDSN(cfg.History.DSN)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		lister, _ = sink.(history.Lister)
		r := history.NewRecorder(sink, log.With("component", "history"), 0)
		defer func() { _ = r.Close() }()
		rec = r
	}

	coord, err := supervisor.New(supervisor.Options{
		Launcher:        supervisor.NewProcessLauncher(spec),
		Signal:          sig,
		PollInterval:    cfg.PollInterval,
		ShutdownTimeout: cfg.ShutdownTimeout,
		PIDFile:         cfg.PIDFile,
		Command:         cfg.Command,
		History:         rec,
		Logger:          log,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	log.Info("reloadr starting", "file", cfg.File, "command", cfg.Command, "dir", cfg.WorkDir)
	if err := coord.Start(); err != nil {
		return err
	}

	w, err := watch.New(cfg.File, cfg.Debounce, func(ev fsnotify.Event) {
		if err := coord.OnChange(supervisor.ReasonFSNotify); err != nil {
			log.Debug("change ignored", "op", ev.Op.String(), "error", err)
		}
	}, log)
	if err != nil {
		shutdown(coord, cfg, log)
		return err
	}

	if cfg.Listen != "" {
		srv, err := server.NewServer(cfg.Listen, "", coord, lister)
		if err != nil {
			shutdown(coord, cfg, log)
			return err
		}
		log.Info("api listening", "addr", srv.Addr)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("api shutdown", "error", err)
			}
		}()
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	watchErr := make(chan error, 1)
	go func() { watchErr <- w.Run(watchCtx) }()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			break loop
		case <-hup:
			if err := coord.OnChange(supervisor.ReasonSignal); err != nil {
				log.Warn("restart on SIGHUP", "error", err)
			}
		case err := <-watchErr:
			if err != nil {
				runErr = err
				log.Error("watcher stopped", "error", err)
			}
			break loop
		}
	}
	cancelWatch()
	shutdown(coord, cfg, log)
	return runErr
}

func shutdown(coord *supervisor.Coordinator, cfg *config.Config, log *slog.Logger) {
	// Kill happens after ShutdownTimeout; leave room for the exit notification.
	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.ShutdownTimeout+time.Second)
	defer cancel()
	if err := coord.Shutdown(ctx); err != nil {
		log.Warn("supervisor shutdown", "error", err)
	}
}
