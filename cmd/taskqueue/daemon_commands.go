package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"taskqueue/internal/daemonctl"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the taskqueued process",
	}
	daemonCmd.AddCommand(newDaemonStartCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	return daemonCmd
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			// The daemon needs the resolved config path even when --socket
			// bypasses config resolution for the dial.
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			socket, err := ctx.socketPath()
			if err != nil {
				return err
			}
			exe, err := daemonctl.DaemonExecutable()
			if err != nil {
				return err
			}

			opts := daemonctl.LaunchOptions{ConfigPath: ctx.configPath, LogLevel: logLevel}
			result, err := daemonctl.EnsureStarted(socket, exe, opts, 10*time.Second)
			if err != nil {
				return err
			}
			if result.AlreadyRunning {
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
				return nil
			}
			fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			return nil
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the daemon log level")
	return cmd
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			socket, err := ctx.socketPath()
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := daemonctl.StopAndTerminate(socket, cfg, 10*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon did not stop gracefully, killed pid %d\n", result.PID)
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the daemon is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			socket, err := ctx.socketPath()
			if err != nil {
				return err
			}
			reachable, pid, err := daemonctl.ProcessInfo(socket)
			if err != nil {
				return err
			}
			if !reachable {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			fmt.Fprintf(stdout, "Daemon running (pid %d)\n", pid)
			return nil
		},
	}
}
