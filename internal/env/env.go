// Package env composes the environment handed to the supervised child.
package env

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Var map[string]string

// Env layers variables on top of a base environment.
type Env struct {
	Var  Var // overrides (K->V)
	base Var // cached base from OS environment
}

func New() *Env {
	return &Env{Var: make(Var)}
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() {
	e.base = parsePairs(os.Environ())
}

// WithBase replaces the base environment. Used by tests and by callers that
// do not want the supervisor's own environment leaking into the child.
func (e *Env) WithBase(pairs []string) *Env {
	e.base = parsePairs(pairs)
	return e
}

// Set sets an override K=V.
func (e *Env) Set(k, v string) {
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
}

// Unset removes an override.
func (e *Env) Unset(k string) {
	if e.Var != nil {
		delete(e.Var, k)
	}
}

// LoadFile applies the KEY=VALUE lines of a .env file as overrides.
func (e *Env) LoadFile(path string) error {
	m, err := readFile(path)
	if err != nil {
		return err
	}
	for k, v := range m {
		e.Set(k, v)
	}
	return nil
}

// Merge composes the final environment: base, then overrides, then extra
// "K=V" entries. ${VAR} references are expanded against the composed map
// (single pass, no recursion). The result is sorted by key.
func (e *Env) Merge(extra []string) []string {
	if e.base == nil {
		e.FromOS()
	}
	m := make(Var, len(e.base)+len(e.Var)+len(extra))
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range e.Var {
		if k == "" {
			continue
		}
		m[k] = v
	}
	for k, v := range parsePairs(extra) {
		m[k] = v
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+expand(m[k], m))
	}
	return out
}

// ValidatePairs reports the first entry that is not KEY=VALUE with a non-empty key.
func ValidatePairs(pairs []string) error {
	for _, kv := range pairs {
		if i := strings.IndexByte(kv, '='); i <= 0 {
			return fmt.Errorf("invalid env entry %q: want KEY=VALUE", kv)
		}
	}
	return nil
}

func parsePairs(pairs []string) Var {
	m := make(Var, len(pairs))
	for _, kv := range pairs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	return m
}

// readFile parses a simple .env file with KEY=VALUE lines (no export, no quotes).
// Lines starting with # are ignored.
func readFile(path string) (Var, error) {
	// Mitigate G304: sanitize user-provided path by cleaning it before use.
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	m := make(Var)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			m[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
		}
	}
	return m, nil
}

// expand replaces ${VAR} only; bare $VAR is left for the child's shell.
func expand(s string, m Var) string {
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			break
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			break
		}
		b.WriteString(s[:i])
		b.WriteString(m[s[i+2:i+2+j]])
		s = s[i+3+j:]
	}
	b.WriteString(s)
	return b.String()
}
