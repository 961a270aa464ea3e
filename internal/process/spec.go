package process

import (
	"errors"
	"os/exec"
	"strings"
)

// Spec describes the child program the launcher starts.
type Spec struct {
	Name    string   `json:"name"`
	Command string   `json:"command"`  // program or shell snippet
	WorkDir string   `json:"work_dir"` // optional working dir
	Env     []string `json:"env"`      // full environment; nil inherits the supervisor's
}

// Validate checks that the spec can be turned into a command.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.Command) == "" {
		return errors.New("process command is required")
	}
	return nil
}

// BuildCommand constructs an *exec.Cmd for s.Command.
// It avoids invoking a shell when not necessary, and it also respects
// an explicit shell invocation already present in the command string
// (e.g., "sh -c 'echo hi'"), avoiding double-wrapping with another shell.
func (s *Spec) BuildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(s.Command)
	if _, afterC, ok := parseExplicitShell(cmdStr); ok {
		return getShellCommand(afterC)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		return getShellCommand(cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204 -- the command comes from the operator's own configuration
	return exec.Command(parts[0], parts[1:]...)
}

// parseExplicitShell detects "sh -c <ARG>" or "/bin/sh -c <ARG>" at the beginning
// of cmdStr and returns (shell, afterC, true) when matched. One pair of outer
// quotes around <ARG> is stripped so the shell sees the script itself.
func parseExplicitShell(cmdStr string) (string, string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		after, ok := strings.CutPrefix(trim, p)
		if !ok {
			continue
		}
		if n := len(after); n >= 2 {
			if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
				after = after[1 : n-1]
			}
		}
		return strings.Fields(p)[0], after, true
	}
	return "", "", false
}
