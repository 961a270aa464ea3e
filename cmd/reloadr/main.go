package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/loykin/reloadr/internal/config"
	"github.com/loykin/reloadr/internal/logger"
	"github.com/loykin/reloadr/pkg/client"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by every command
type GlobalFlags struct {
	ConfigPath string
}

// ClientFlags holds flags for commands talking to a running supervisor
type ClientFlags struct {
	APIUrl     string
	APITimeout time.Duration
	PIDFile    string
}

// HistoryFlags holds flags for the history command
type HistoryFlags struct {
	ClientFlags
	DSN   string
	Limit int
}

func buildRoot() *cobra.Command {
	global := &GlobalFlags{}
	root := createRootCommand(global)
	// the bare command behaves like "run"
	addRunFlags(root.Flags())
	root.RunE = func(cmd *cobra.Command, _ []string) error {
		return runCommand(cmd, global)
	}

	root.AddCommand(
		createRunCommand(global),
		createStatusCommand(&ClientFlags{}),
		createRestartCommand(&ClientFlags{}),
		createHistoryCommand(global, &HistoryFlags{}),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "reloadr",
		Short: "Restart a build-and-run script whenever a source file changes",
		Long: `reloadr launches a build-and-run command, watches one source file and
restarts the command after every change. Bursts of changes are debounced and the
previous child is confirmed dead before the next one starts.

Examples:
  reloadr                                  # watch ./main.go, run ./build-and-run.sh
  reloadr run --file app.go --command "go run ."
  reloadr run --listen 127.0.0.1:7070      # enable status/restart/metrics API
  reloadr status --api-url http://127.0.0.1:7070
  reloadr restart`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func createRunCommand(global *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the supervisor in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCommand(cmd, global)
		},
	}
	addRunFlags(cmd.Flags())
	return cmd
}

// addRunFlags registers the supervisor flags. Their names map onto config
// keys through config.FlagKey; defaults only apply when neither the config
// file nor the environment sets the key.
func addRunFlags(fs *pflag.FlagSet) {
	fs.String("dir", "", "base directory for relative paths (default: executable dir)")
	fs.String("file", config.DefaultFile, "file to watch")
	fs.String("command", config.DefaultCommand, "build-and-run command")
	fs.String("work-dir", "", "child working directory (default: --dir)")
	fs.StringSlice("env", nil, "extra KEY=VALUE for the child (repeatable)")
	fs.StringSlice("env-files", nil, ".env files merged into the child environment")
	fs.Duration("debounce", config.DefaultDebounce, "quiet window before a change is acted on")
	fs.Duration("poll-interval", config.DefaultPollInterval, "interval between termination signals")
	fs.String("signal", config.DefaultSignal, "termination signal")
	fs.Duration("shutdown-timeout", config.DefaultShutdownTimeout, "wait before killing the child on exit")
	fs.String("pid-file", "", "write the child's pid here")
	fs.String("listen", "", "HTTP address for status, restart and metrics")
	fs.String("history-dsn", "", "restart history sink (sqlite path, postgres://, clickhouse:// or opensearch://)")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("log-format", "text", "console log format: text or json")
	fs.String("log-file", "", "also write JSON logs to this rotating file")
	fs.Int("log-max-size-mb", logger.DefaultMaxSizeMB, "log file size before rotation")
	fs.Int("log-max-backups", logger.DefaultMaxBackups, "rotated log files to keep")
	fs.Int("log-max-age-days", logger.DefaultMaxAgeDays, "days to keep rotated log files")
	fs.Bool("log-compress", false, "gzip rotated log files")
}

func addClientFlags(fs *pflag.FlagSet, flags *ClientFlags) {
	fs.StringVar(&flags.APIUrl, "api-url", client.DefaultBaseURL, "supervisor API base URL")
	fs.DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "API request timeout")
}

func createStatusCommand(flags *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the supervised child",
		Long: `Show the supervisor status through its API, or check the child recorded in
a pid file when --pid-file is given (works while the supervisor is down).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return statusCommand(cmd, flags)
		},
	}
	addClientFlags(cmd.Flags(), flags)
	cmd.Flags().StringVar(&flags.PIDFile, "pid-file", "", "read the child pid from this file instead of the API")
	return cmd
}

func createRestartCommand(flags *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Ask a running supervisor to restart its child",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return restartCommand(cmd, flags)
		},
	}
	addClientFlags(cmd.Flags(), flags)
	return cmd
}

func createHistoryCommand(global *GlobalFlags, flags *HistoryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent restart history",
		Long: `List recent launches, exits and failures. Reads the history store directly
when a DSN is known (--dsn or history.dsn in --config), otherwise asks the API.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return historyCommand(cmd, global, flags)
		},
	}
	addClientFlags(cmd.Flags(), &flags.ClientFlags)
	cmd.Flags().StringVar(&flags.DSN, "dsn", "", "history store DSN")
	cmd.Flags().IntVar(&flags.Limit, "limit", 20, "number of events")
	return cmd
}
