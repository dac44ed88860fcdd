package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"taskqueue/internal/ipc"
)

func newLoadCommand(ctx *commandContext) *cobra.Command {
	var sourceID string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Scan pending directories and enqueue any backlog",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.LoadBacklog(sourceID)
				if err != nil {
					return err
				}
				ids := make([]string, 0, len(resp.Added))
				for id := range resp.Added {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				total := 0
				for _, id := range ids {
					fmt.Fprintf(stdout, "%s: %d added\n", id, resp.Added[id])
					total += resp.Added[id]
				}
				if total == 0 {
					fmt.Fprintln(stdout, "No new tasks")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&sourceID, "source", "s", "", "Limit the scan to one source")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-source queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				st := resp.Status
				fmt.Fprintf(stdout, "Daemon running (pid %d, since %s)\n\n",
					st.PID, st.StartedAt.Local().Format(time.RFC3339))

				rows := make([][]string, 0, len(st.Sources))
				for _, src := range st.Sources {
					mode := "watching"
					if src.Degraded {
						mode = "polling"
					}
					current := src.Current
					if current == "" {
						current = "-"
					}
					rows = append(rows, []string{
						src.ID,
						mode,
						current,
						strconv.Itoa(len(src.Queued)),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"SOURCE", "MODE", "RUNNING", "QUEUED"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "queue <source>",
		Short: "List queued tasks for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueList(args[0])
				if err != nil {
					return err
				}
				if resp.Current != "" {
					fmt.Fprintf(stdout, "running: %s\n", resp.Current)
				}
				if len(resp.Queued) == 0 {
					fmt.Fprintln(stdout, "queue empty")
					return nil
				}
				for i, id := range resp.Queued {
					fmt.Fprintf(stdout, "%3d. %s\n", i+1, id)
				}
				return nil
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	var sourceID string
	cmd := &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel a queued or running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Cancel(sourceID, args[0])
				if err != nil {
					return err
				}
				if !resp.Cancelled {
					fmt.Fprintf(stdout, "Task %s is not queued or running\n", args[0])
					return nil
				}
				fmt.Fprintf(stdout, "Cancelled %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&sourceID, "source", "s", "", "Only search the given source")
	return cmd
}
