package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/harrison/parallelorc/internal/models"
	"github.com/harrison/parallelorc/internal/worker"
	"github.com/spf13/cobra"
)

// newRunTaskCommand returns the hidden subcommand the cluster backend's
// generated job scripts invoke to run a single task's worker body out of
// process. It is not meant to be typed by a user directly.
func newRunTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "__run-task",
		Short:  "Execute a single task (internal, invoked by generated job scripts)",
		Hidden: true,
		RunE:   runTaskCommand,
	}

	cmd.Flags().String("task-id", "", "Task ID to execute")
	cmd.Flags().String("output-dir", "", "Run output directory")
	cmd.Flags().String("result-file", "", "Path to write the result JSON to on success")
	cmd.MarkFlagRequired("task-id")
	cmd.MarkFlagRequired("result-file")

	return cmd
}

func runTaskCommand(cmd *cobra.Command, args []string) error {
	taskID, _ := cmd.Flags().GetString("task-id")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	resultFile, _ := cmd.Flags().GetString("result-file")

	task := models.Task{ID: taskID}
	runCtx := &models.RunContext{OutputDir: outputDir}

	exec := worker.NewEchoExecutor()
	result, err := exec.Execute(context.Background(), task, runCtx)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "task %s failed: %v\n", taskID, err)
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result for task %s: %w", taskID, err)
	}

	return os.WriteFile(resultFile, data, 0644)
}
