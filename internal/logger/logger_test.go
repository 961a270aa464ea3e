package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lj "gopkg.in/natefinch/lumberjack.v2"
)

func TestNew_TextConsoleNoColorOnBuffer(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(Config{Level: "info"}, &buf)
	require.NoError(t, err)
	defer func() { _ = closer.Close() }()

	log.With("component", "coordinator").Info("child exited", "pid", 42)
	log.Debug("hidden")

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "INFO  "), out)
	assert.Contains(t, out, `msg="child exited"`)
	assert.NotContains(t, out, "level=")
	assert.Contains(t, out, "component=coordinator")
	assert.Contains(t, out, "pid=42")
	assert.NotContains(t, out, "\033[")
	assert.NotContains(t, out, "hidden")
}

func TestNew_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(Config{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	log.Debug("restart superseded", "generation", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "restart superseded", rec["msg"])
	assert.Equal(t, float64(3), rec["generation"])
}

func TestNew_TeesToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "reloadr.log")
	log, closer, err := New(Config{File: path}, &buf)
	require.NoError(t, err)

	log.With("component", "watch").Warn("watch error", "error", "boom")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(b))
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "watch", rec["component"])
	assert.Contains(t, buf.String(), "watch error")
}

func TestNew_InvalidConfig(t *testing.T) {
	_, _, err := New(Config{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
	_, _, err = New(Config{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
	assert.Error(t, Config{Format: "xml"}.Validate())
	assert.NoError(t, Config{Level: "WARN", Format: "JSON"}.Validate())
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestFileWriter_Defaults(t *testing.T) {
	assert.Nil(t, Config{}.FileWriter())
	w := Config{File: "x.log", MaxSizeMB: -1}.FileWriter()
	l, ok := w.(*lj.Logger)
	require.True(t, ok)
	assert.Equal(t, DefaultMaxSizeMB, l.MaxSize)
	assert.Equal(t, DefaultMaxBackups, l.MaxBackups)
	assert.Equal(t, DefaultMaxAgeDays, l.MaxAge)
}

func TestColorTextHandler_Colors(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorTextHandler(&buf, nil, true)).With("k", "v")
	log.Error("launch failed")
	assert.True(t, strings.HasPrefix(buf.String(), "\033[31mERROR\033[0m  "), buf.String())
	assert.Contains(t, buf.String(), `msg="launch failed"`)
	assert.Contains(t, buf.String(), "k=v")
}
