//go:build !windows

package detector

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFile_RoundTrip(t *testing.T) {
	cmd := startSleep(t, "5")
	path := filepath.Join(t.TempDir(), "run", "child.pid")

	require.NoError(t, WritePIDFile(path, cmd.Process.Pid))
	pid, meta, err := ReadPIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, cmd.Process.Pid, pid)
	assert.Equal(t, StartTime(cmd.Process.Pid), meta.StartUnix)

	alive, err := PIDFileDetector{PIDFile: path}.Alive()
	require.NoError(t, err)
	assert.True(t, alive)
}

func TestPIDFileDetector_MissingFile(t *testing.T) {
	alive, err := PIDFileDetector{PIDFile: filepath.Join(t.TempDir(), "none.pid")}.Alive()
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestPIDFileDetector_ReusedPID(t *testing.T) {
	cmd := startSleep(t, "5")
	pid := cmd.Process.Pid
	if StartTime(pid) == 0 {
		t.Skip("process start time unavailable on this platform")
	}
	path := filepath.Join(t.TempDir(), "child.pid")
	content := strconv.Itoa(pid) + "\n" + `{"start_unix":1}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	alive, err := PIDFileDetector{PIDFile: path}.Alive()
	require.NoError(t, err)
	assert.False(t, alive, "start time mismatch means the pid belongs to another process")
}

func TestPIDFileDetector_LegacyPIDOnly(t *testing.T) {
	cmd := startSleep(t, "5")
	path := filepath.Join(t.TempDir(), "child.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(cmd.Process.Pid)), 0o600))

	alive, err := PIDFileDetector{PIDFile: path}.Alive()
	require.NoError(t, err)
	assert.True(t, alive)
}

func TestReadPIDFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid\n"), 0o600))
	_, _, err := ReadPIDFile(path)
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	var d Detector = PIDFileDetector{PIDFile: "/tmp/x.pid"}
	assert.Equal(t, "pidfile:/tmp/x.pid", d.Describe())
}
