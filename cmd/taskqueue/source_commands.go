package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskqueue/internal/ipc"
)

func newSourceCommand(ctx *commandContext) *cobra.Command {
	sourceCmd := &cobra.Command{
		Use:   "source",
		Short: "Manage task sources",
	}
	sourceCmd.AddCommand(newSourceAddCommand(ctx))
	sourceCmd.AddCommand(newSourceRemoveCommand(ctx))
	sourceCmd.AddCommand(newSourceListCommand(ctx))
	return sourceCmd
}

func newSourceAddCommand(ctx *commandContext) *cobra.Command {
	var workspace string
	var disabled bool
	cmd := &cobra.Command{
		Use:   "add <id> <path>",
		Short: "Register a new source with the running daemon",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				_, err := client.SourceAdd(ipc.SourceAddRequest{
					ID:        args[0],
					Path:      args[1],
					Workspace: workspace,
					Enabled:   !disabled,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Source %s added\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace the backend runs in for this source")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Register without starting the pipeline")
	return cmd
}

func newSourceRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Unregister a source (task files are left in place)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.SourceRemove(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Source %s removed\n", args[0])
				return nil
			})
		},
	}
}

func newSourceListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(cfg.Sources))
			for _, src := range cfg.Sources {
				state := "enabled"
				if !src.Enabled {
					state = "disabled"
				}
				workspace := src.Workspace
				if workspace == "" {
					workspace = cfg.Paths.Workspace
				}
				rows = append(rows, []string{src.ID, state, src.Path, workspace})
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"ID", "STATE", "PATH", "WORKSPACE"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}
}
