package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// NewRootCommand creates and returns the root cobra command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parallelorc",
		Short: "Parallel task orchestrator",
		Long: `parallelorc executes a plan of interdependent tasks across a
pluggable execution backend: in-process threads, a local HPC-style
cluster, a managed cloud batch service, or local containers.

A planner turns requirements into a task graph; parallelorc schedules the
graph, respecting dependencies, applying retry policy to failures, and
recording a summary of what happened.`,
		Version:      Version,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(newRunTaskCommand())

	return cmd
}
