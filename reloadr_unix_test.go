//go:build !windows

package reloadr

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/reloadr/internal/config"
	"github.com/loykin/reloadr/internal/detector"
	"github.com/loykin/reloadr/internal/history"
	"github.com/loykin/reloadr/internal/logger"
)

func readPID(path string) int {
	pid, _, err := detector.ReadPIDFile(path)
	if err != nil {
		return 0
	}
	return pid
}

func TestRun_RestartsOnChange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end supervisor test in short mode")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(src, []byte("package reloadr\n"), 0o600))
	script := filepath.Join(dir, "build-and-run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexec sleep 30\n"), 0o755)) // #nosec G306

	cfg := &config.Config{
		Dir:             dir,
		File:            "main.go",
		Command:         "./build-and-run.sh",
		Debounce:        50 * time.Millisecond,
		PollInterval:    20 * time.Millisecond,
		Signal:          "SIGTERM",
		ShutdownTimeout: 2 * time.Second,
		PIDFile:         "run/child.pid",
		History:         config.HistoryConfig{DSN: "sqlite://" + filepath.Join(dir, "history.db")},
		Log:             logger.Config{Level: "error"},
	}
	require.NoError(t, cfg.Resolve())
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, io.Discard) }()

	require.Eventually(t, func() bool { return readPID(cfg.PIDFile) > 0 }, 5*time.Second, 10*time.Millisecond)
	first := readPID(cfg.PIDFile)
	require.True(t, detector.Alive(first))

	// give the watcher time to register before editing
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(src, []byte("package reloadr\n// edited\n"), 0o600))

	require.Eventually(t, func() bool {
		p := readPID(cfg.PIDFile)
		return p > 0 && p != first
	}, 5*time.Second, 10*time.Millisecond)
	second := readPID(cfg.PIDFile)
	assert.False(t, detector.Alive(first))
	assert.True(t, detector.Alive(second))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not stop")
	}
	assert.False(t, detector.Alive(second))
	_, err := os.Stat(cfg.PIDFile)
	assert.True(t, os.IsNotExist(err))

	events, err := RecentHistory(context.Background(), cfg.History.DSN, 50)
	require.NoError(t, err)
	launches := 0
	for _, e := range events {
		if e.Type == history.EventLaunch {
			launches++
		}
	}
	assert.Equal(t, 2, launches)
}

func TestRun_StartFailure(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Dir:             dir,
		File:            "main.go",
		Command:         "./missing.sh",
		Debounce:        time.Second,
		PollInterval:    time.Second,
		Signal:          "TERM",
		ShutdownTimeout: time.Second,
		Log:             logger.Config{Level: "error"},
	}
	require.NoError(t, cfg.Resolve())
	err := Run(context.Background(), cfg, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial launch")
}

func TestLoadConfig_Invalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(p, []byte("dir = \"/tmp\"\ndebounce = \"-1s\"\n"), 0o600))
	_, err := LoadConfig(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "debounce")
}

func TestRecentHistory_UnsupportedDSN(t *testing.T) {
	_, err := RecentHistory(context.Background(), "mongodb://x", 1)
	assert.Error(t, err)
}
