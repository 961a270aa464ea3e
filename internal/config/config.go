// Package config loads reloadr's settings with viper: defaults, an optional
// TOML file, RELOADR_* environment variables and command-line flags, in
// increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/loykin/reloadr/internal/env"
	"github.com/loykin/reloadr/internal/logger"
	"github.com/loykin/reloadr/internal/process"
)

// EnvPrefix is prepended to every environment override, e.g. RELOADR_DEBOUNCE.
const EnvPrefix = "RELOADR"

// Defaults
const (
	DefaultFile            = "main.go"
	DefaultCommand         = "./build-and-run.sh"
	DefaultDebounce        = 500 * time.Millisecond
	DefaultPollInterval    = 200 * time.Millisecond
	DefaultSignal          = "SIGTERM"
	DefaultShutdownTimeout = 5 * time.Second
)

type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

// Config is the resolved supervisor configuration.
type Config struct {
	Dir             string        `toml:"dir" mapstructure:"dir"`
	File            string        `toml:"file" mapstructure:"file"`
	Command         string        `toml:"command" mapstructure:"command"`
	WorkDir         string        `toml:"work_dir" mapstructure:"work_dir"`
	Env             []string      `toml:"env" mapstructure:"env"`
	EnvFiles        []string      `toml:"env_files" mapstructure:"env_files"`
	Debounce        time.Duration `toml:"debounce" mapstructure:"debounce"`
	PollInterval    time.Duration `toml:"poll_interval" mapstructure:"poll_interval"`
	Signal          string        `toml:"signal" mapstructure:"signal"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	PIDFile         string        `toml:"pid_file" mapstructure:"pid_file"`
	Listen          string        `toml:"listen" mapstructure:"listen"`
	History         HistoryConfig `toml:"history" mapstructure:"history"`
	Log             logger.Config `toml:"log" mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dir", "")
	v.SetDefault("file", DefaultFile)
	v.SetDefault("command", DefaultCommand)
	v.SetDefault("work_dir", "")
	v.SetDefault("env", []string{})
	v.SetDefault("env_files", []string{})
	v.SetDefault("debounce", DefaultDebounce)
	v.SetDefault("poll_interval", DefaultPollInterval)
	v.SetDefault("signal", DefaultSignal)
	v.SetDefault("shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("pid_file", "")
	v.SetDefault("listen", "")
	v.SetDefault("history.dsn", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)
}

// FlagKey maps a command-line flag name to its config key:
// "poll-interval" -> "poll_interval", "log-level" -> "log.level",
// "history-dsn" -> "history.dsn".
func FlagKey(name string) string {
	for _, sect := range []string{"log", "history"} {
		if rest, ok := strings.CutPrefix(name, sect+"-"); ok {
			return sect + "." + strings.ReplaceAll(rest, "-", "_")
		}
	}
	return strings.ReplaceAll(name, "-", "_")
}

// Load reads the configuration. path may be empty; flags may be nil. Flags
// that do not correspond to a config key (e.g. "config") are ignored.
// The result is resolved but not validated.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := FlagKey(f.Name)
			if !isKnownKey(v, key) {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Resolve(); err != nil {
		return nil, err
	}
	return &c, nil
}

func isKnownKey(v *viper.Viper, key string) bool {
	for _, k := range v.AllKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// Resolve fills Dir from the executable location when empty and makes File,
// WorkDir, PIDFile, EnvFiles and Log.File absolute relative to Dir.
func (c *Config) Resolve() error {
	if c.Dir == "" {
		d, err := ExecutableDir()
		if err != nil {
			return err
		}
		c.Dir = d
	}
	abs, err := filepath.Abs(c.Dir)
	if err != nil {
		return fmt.Errorf("resolve dir: %w", err)
	}
	c.Dir = abs
	c.File = c.under(c.File)
	if c.WorkDir == "" {
		c.WorkDir = c.Dir
	} else {
		c.WorkDir = c.under(c.WorkDir)
	}
	c.PIDFile = c.under(c.PIDFile)
	c.Log.File = c.under(c.Log.File)
	for i, f := range c.EnvFiles {
		c.EnvFiles[i] = c.under(f)
	}
	return nil
}

func (c *Config) under(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// ExecutableDir returns the directory holding the running binary.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// Validate rejects settings the supervisor cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.File) == "" {
		errs = append(errs, errors.New("file is required"))
	}
	if strings.TrimSpace(c.Command) == "" {
		errs = append(errs, errors.New("command is required"))
	}
	if c.Debounce <= 0 {
		errs = append(errs, fmt.Errorf("debounce must be positive, got %s", c.Debounce))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout))
	}
	if _, err := process.ParseSignal(c.Signal); err != nil {
		errs = append(errs, err)
	}
	if err := env.ValidatePairs(c.Env); err != nil {
		errs = append(errs, err)
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TermSignal returns the parsed termination signal.
func (c *Config) TermSignal() (os.Signal, error) {
	return process.ParseSignal(c.Signal)
}

// ProcessSpec builds the child spec. The environment is the supervisor's own,
// then env_files in order, then the env list.
func (c *Config) ProcessSpec() (process.Spec, error) {
	e := env.New()
	for _, f := range c.EnvFiles {
		if err := e.LoadFile(f); err != nil {
			return process.Spec{}, err
		}
	}
	return process.Spec{
		Name:    commandName(c.Command),
		Command: c.Command,
		WorkDir: c.WorkDir,
		Env:     e.Merge(c.Env),
	}, nil
}

func commandName(cmd string) string {
	f := strings.Fields(cmd)
	if len(f) == 0 {
		return ""
	}
	return filepath.Base(f[0])
}
