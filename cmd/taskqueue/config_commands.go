package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskqueue/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and bootstrap the configuration file",
	}
	configCmd.AddCommand(newConfigInitCommand(ctx))
	configCmd.AddCommand(newConfigShowCommand(ctx))
	return configCmd
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented sample configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			path := ""
			if ctx.configFlag != nil {
				path = *ctx.configFlag
			}
			if path == "" {
				var err error
				if path, err = config.DefaultConfigPath(); err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Wrote sample config to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "config file: %s\n\n", ctx.configPath)
			fmt.Fprintf(stdout, "workspace:   %s\n", cfg.Paths.Workspace)
			fmt.Fprintf(stdout, "log dir:     %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(stdout, "run dir:     %s\n", cfg.Paths.RunDir)
			fmt.Fprintf(stdout, "backend:     %s\n", cfg.Backend.Command)
			fmt.Fprintf(stdout, "attempts:    %d\n", cfg.Queue.MaxAttempts)
			fmt.Fprintf(stdout, "watch:       %v (debounce %s)\n", cfg.Watch.Enabled, cfg.DebounceWindow())
			fmt.Fprintf(stdout, "sources:     %d configured, %d enabled\n",
				len(cfg.Sources), len(cfg.EnabledSources()))
			return nil
		},
	}
}
