//go:build !windows

package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/reloadr/internal/detector"
	"github.com/loykin/reloadr/internal/process"
)

func TestCoordinator_RealProcesses(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping process test in short mode")
	}
	l := NewProcessLauncher(process.Spec{Name: "sleeper", Command: "sleep 30"}, process.WithStdio(nil, nil, nil))
	c, err := New(Options{Launcher: l, PollInterval: 20 * time.Millisecond, ShutdownTimeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, c.Start())

	s, err := c.Snapshot()
	require.NoError(t, err)
	firstPID := s.PID
	require.True(t, detector.Alive(firstPID))

	require.NoError(t, c.OnChange(ReasonAPI))
	require.Eventually(t, func() bool {
		s, err := c.Snapshot()
		return err == nil && s.Launches == 2 && s.Running
	}, 5*time.Second, 10*time.Millisecond)

	s, err = c.Snapshot()
	require.NoError(t, err)
	assert.NotEqual(t, firstPID, s.PID)
	assert.False(t, detector.Alive(firstPID))
	assert.True(t, detector.Alive(s.PID))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))
	assert.Eventually(t, func() bool { return !detector.Alive(s.PID) }, time.Second, 10*time.Millisecond)
}

func TestCoordinator_RealLaunchFailure(t *testing.T) {
	l := NewProcessLauncher(process.Spec{Command: "/definitely/not/here"})
	c, err := New(Options{Launcher: l})
	require.NoError(t, err)
	assert.Error(t, c.Start())
}
