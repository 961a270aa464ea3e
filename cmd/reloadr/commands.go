package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loykin/reloadr"
	"github.com/loykin/reloadr/internal/config"
	"github.com/loykin/reloadr/internal/detector"
	"github.com/loykin/reloadr/pkg/client"
)

func newClient(flags *ClientFlags) *client.Client {
	return client.New(client.Config{BaseURL: flags.APIUrl, Timeout: flags.APITimeout})
}

func runCommand(cmd *cobra.Command, global *GlobalFlags) error {
	cfg, err := config.Load(global.ConfigPath, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return reloadr.Run(cmd.Context(), cfg, cmd.ErrOrStderr())
}

// pidStatus is printed by "status --pid-file".
type pidStatus struct {
	PID      int    `json:"pid"`
	Alive    bool   `json:"alive"`
	PIDFile  string `json:"pid_file"`
	Detector string `json:"detector"`
}

func statusCommand(cmd *cobra.Command, flags *ClientFlags) error {
	if flags.PIDFile != "" {
		pid, _, err := detector.ReadPIDFile(flags.PIDFile)
		if err != nil {
			return fmt.Errorf("read pid file: %w", err)
		}
		var det detector.Detector = detector.PIDFileDetector{PIDFile: flags.PIDFile}
		alive, err := det.Alive()
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), pidStatus{PID: pid, Alive: alive, PIDFile: flags.PIDFile, Detector: det.Describe()})
	}
	st, err := newClient(flags).Status(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), st)
}

func restartCommand(cmd *cobra.Command, flags *ClientFlags) error {
	if err := newClient(flags).Restart(cmd.Context()); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "restart requested")
	return nil
}

func historyCommand(cmd *cobra.Command, global *GlobalFlags, flags *HistoryFlags) error {
	dsn := flags.DSN
	if dsn == "" && global.ConfigPath != "" {
		cfg, err := config.Load(global.ConfigPath, nil)
		if err != nil {
			return err
		}
		dsn = cfg.History.DSN
	}
	var (
		events []reloadr.Event
		err    error
	)
	if dsn != "" {
		events, err = reloadr.RecentHistory(cmd.Context(), dsn, flags.Limit)
	} else {
		events, err = newClient(&flags.ClientFlags).History(cmd.Context(), flags.Limit)
	}
	if err != nil {
		return err
	}
	if events == nil {
		events = []reloadr.Event{}
	}
	return printJSON(cmd.OutOrStdout(), events)
}
