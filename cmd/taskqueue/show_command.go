package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"taskqueue/internal/config"
	"taskqueue/internal/lockfile"
	"taskqueue/internal/results"
	"taskqueue/internal/task"
)

// newShowCommand inspects the source directories directly, so it works
// whether or not the daemon is running.
func newShowCommand(ctx *commandContext) *cobra.Command {
	var sourceID string
	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show where a task stands by inspecting the source directories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			taskID := args[0]
			if !task.ValidID(taskID) {
				return fmt.Errorf("invalid task id %q", taskID)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			sources := cfg.Sources
			if sourceID != "" {
				src, ok := cfg.SourceByID(sourceID)
				if !ok {
					return fmt.Errorf("unknown source %q", sourceID)
				}
				sources = []config.Source{src}
			}

			for _, src := range sources {
				found, err := showInSource(stdout, src, taskID)
				if err != nil {
					return err
				}
				if found {
					return nil
				}
			}
			return fmt.Errorf("task %s not found in any source", taskID)
		},
	}
	cmd.Flags().StringVarP(&sourceID, "source", "s", "", "Only inspect this source")
	return cmd
}

func showInSource(stdout io.Writer, src config.Source, taskID string) (bool, error) {
	name := taskID + task.Extension
	colorize := shouldColorize(stdout)

	if fileExists(filepath.Join(src.PendingDir(), name)) {
		locks := lockfile.NewManager(src.PendingDir(), nil)
		if locks.Held(taskID) {
			fmt.Fprintf(stdout, "task:   %s\nsource: %s\nstate:  %s\n",
				taskID, src.ID, statusLabel("running", colorize))
			if rec, err := locks.Read(taskID); err == nil {
				fmt.Fprintf(stdout, "worker: %s (pid %d)\nsince:  %s\n",
					rec.Worker, rec.PID, rec.StartedAt.Local().Format(time.RFC3339))
			}
			return true, nil
		}
		fmt.Fprintf(stdout, "task:   %s\nsource: %s\nstate:  pending\n", taskID, src.ID)
		return true, nil
	}

	if fileExists(filepath.Join(src.CompletedDir(), name)) {
		fmt.Fprintf(stdout, "task:   %s\nsource: %s\nstate:  %s\n",
			taskID, src.ID, statusLabel("completed", colorize))
		showResultSummary(stdout, src, taskID)
		return true, nil
	}

	if fileExists(filepath.Join(src.FailedDir(), name)) {
		// The failed directory also archives cancelled documents; the
		// result artifact tells them apart.
		state := "failed"
		if res, err := results.NewStore(src.ResultsDir()).Read(taskID); err == nil && res.Status != "" {
			state = res.Status
		}
		fmt.Fprintf(stdout, "task:   %s\nsource: %s\nstate:  %s\n",
			taskID, src.ID, statusLabel(state, colorize))
		showResultSummary(stdout, src, taskID)
		if note, err := os.ReadFile(filepath.Join(src.FailedDir(), taskID+".error")); err == nil {
			fmt.Fprintf(stdout, "\n--- error note ---\n%s", note)
		}
		return true, nil
	}

	// Cancelled documents are removed by hand sometimes; the result artifact
	// may still be the only trace.
	if res, err := results.NewStore(src.ResultsDir()).Read(taskID); err == nil {
		fmt.Fprintf(stdout, "task:   %s\nsource: %s\nstate:  %s (document removed)\n",
			taskID, src.ID, statusLabel(res.Status, colorize))
		return true, nil
	}
	return false, nil
}

func showResultSummary(stdout io.Writer, src config.Source, taskID string) {
	res, err := results.NewStore(src.ResultsDir()).Read(taskID)
	if err != nil {
		return
	}
	fmt.Fprintf(stdout, "attempts: %d\nexit code: %d\nfinished: %s\n",
		res.Attempts, res.ExitCode, res.CompletedAt.Local().Format(time.RFC3339))
	if res.Error != "" {
		fmt.Fprintf(stdout, "error: %s\n", res.Error)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
