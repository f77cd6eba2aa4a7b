package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "sessionlens.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sl",
		Short: "Sessionlens: study session inspector",
		Long: `Sessionlens reconciles study session records with the fallback telemetry
carried in response rows, and lets administrators review and correct them.`,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newCompletenessCmd())
	cmd.AddCommand(newEditCmd())
	cmd.AddCommand(newSnapshotCmd())
	cmd.AddCommand(newOverrideCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sl %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
