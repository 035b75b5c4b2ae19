package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/parallelorc/internal/config"
	"github.com/harrison/parallelorc/internal/runhistory"
)

// NewHistoryCommand creates the history command, which lists past runs
// recorded by the run command. This supplements the single-invocation
// RunContext with a record that survives across invocations.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past orchestration runs",
		RunE:  historyCommand,
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 = all)")

	return cmd
}

func historyCommand(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	dbPath, err := config.GetRunHistoryDBPath()
	if err != nil {
		return fmt.Errorf("locate run history database: %w", err)
	}

	store, err := runhistory.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open run history database: %w", err)
	}
	defer store.Close()

	records, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "no recorded runs")
		return nil
	}

	fmt.Fprintf(out, "%-10s %-10s %-20s %6s %6s %6s %8s %-12s %s\n",
		"RUN ID", "BACKEND", "STARTED", "TOTAL", "DONE", "FAILED", "SUCCESS", "DURATION", "REQUIREMENTS")
	for _, r := range records {
		fmt.Fprintf(out, "%-10s %-10s %-20s %6d %6d %6d %7.0f%% %-12s %s\n",
			r.RunID,
			r.Backend,
			r.StartedAt.Format(time.RFC3339),
			r.TotalTasks,
			r.CompletedTasks,
			r.FailedTasks,
			r.SuccessRate*100,
			r.Duration.Round(time.Second),
			r.Requirements,
		)
	}

	return nil
}
