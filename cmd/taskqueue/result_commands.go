package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"taskqueue/internal/ipc"
	"taskqueue/internal/results"
)

func newResultCommand(ctx *commandContext) *cobra.Command {
	var sourceID string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "result <task-id>",
		Short: "Show the stored result for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Result(sourceID, args[0])
				if err != nil {
					return err
				}
				if !resp.Found {
					fmt.Fprintf(stdout, "No result for %s\n", args[0])
					return nil
				}
				if asJSON {
					rendered, err := results.MarshalIndentJSON(resp.Result)
					if err != nil {
						return err
					}
					fmt.Fprintln(stdout, rendered)
					return nil
				}
				printResult(stdout, resp.Result, shouldColorize(stdout))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&sourceID, "source", "s", "main", "Source the task belongs to")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw result document")
	return cmd
}

func printResult(stdout io.Writer, res results.Result, colorize bool) {
	fmt.Fprintf(stdout, "task:      %s\n", res.TaskID)
	fmt.Fprintf(stdout, "source:    %s\n", res.SourceID)
	fmt.Fprintf(stdout, "status:    %s\n", statusLabel(res.Status, colorize))
	fmt.Fprintf(stdout, "attempts:  %d\n", res.Attempts)
	fmt.Fprintf(stdout, "exit code: %d\n", res.ExitCode)
	fmt.Fprintf(stdout, "started:   %s\n", res.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(stdout, "duration:  %.1fs\n", res.Duration)
	if res.Error != "" {
		fmt.Fprintf(stdout, "error:     %s\n", res.Error)
	}
	if res.Stdout != "" {
		fmt.Fprintf(stdout, "\n--- stdout ---\n%s\n", res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Fprintf(stdout, "\n--- stderr ---\n%s\n", res.Stderr)
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <source>",
		Short: "Show recent results for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(args[0], limit)
				if err != nil {
					return err
				}
				colorize := shouldColorize(stdout)
				rows := make([][]string, 0, len(resp.Results))
				for _, res := range resp.Results {
					rows = append(rows, []string{
						res.TaskID,
						statusLabel(res.Status, colorize),
						strconv.Itoa(res.Attempts),
						fmt.Sprintf("%.1fs", res.Duration),
						res.CompletedAt.Local().Format("2006-01-02 15:04:05"),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"TASK", "STATUS", "ATTEMPTS", "DURATION", "FINISHED"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft}))
				fmt.Fprintf(stdout, "total %d: %d completed, %d failed, %d cancelled\n",
					resp.Summary.Total, resp.Summary.Completed, resp.Summary.Failed, resp.Summary.Cancelled)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results to show")
	return cmd
}
