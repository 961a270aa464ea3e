package detector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PIDMeta is stored on the second line of a pid file.
type PIDMeta struct {
	StartUnix int64 `json:"start_unix"`
}

// WritePIDFile writes pid and its start time to path, creating parent directories.
func WritePIDFile(path string, pid int) error {
	if path == "" || pid <= 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create pid file dir: %w", err)
	}
	mb, err := json.Marshal(PIDMeta{StartUnix: StartTime(pid)})
	if err != nil {
		return err
	}
	content := strconv.Itoa(pid) + "\n" + string(mb) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// ReadPIDFile returns the pid and optional meta stored in path.
func ReadPIDFile(path string) (int, PIDMeta, error) {
	var meta PIDMeta
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, meta, err
	}
	first, rest, _ := strings.Cut(strings.ReplaceAll(string(b), "\r\n", "\n"), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0, meta, fmt.Errorf("invalid pid in %s: %w", path, err)
	}
	if rest = strings.TrimSpace(rest); rest != "" {
		// A damaged meta line only disables PID reuse detection.
		_ = json.Unmarshal([]byte(rest), &meta)
	}
	return pid, meta, nil
}

// PIDFileDetector detects a process via a pid file written by WritePIDFile.
type PIDFileDetector struct {
	PIDFile string
}

func (d PIDFileDetector) Alive() (bool, error) {
	pid, meta, err := ReadPIDFile(d.PIDFile)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if meta.StartUnix > 0 {
		if cur := StartTime(pid); cur > 0 && cur != meta.StartUnix {
			return false, nil // PID reused; not our process
		}
	}
	return Alive(pid), nil
}

func (d PIDFileDetector) Describe() string { return "pidfile:" + d.PIDFile }
