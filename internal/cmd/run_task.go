package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/jobscope/pkg/provider/local"
)

var (
	runTaskRoot  string
	runTaskJobID string
)

// runTaskCmd is the hidden runner mode the executor re-invokes the
// binary with. It executes the submitted command in the managed child
// and records lifecycle events in the registry.
var runTaskCmd = &cobra.Command{
	Use:    "__run-task",
	Hidden: true,
	RunE:   runRunTask,
}

func init() {
	rootCmd.AddCommand(runTaskCmd)

	runTaskCmd.Flags().StringVar(&runTaskRoot, "root", "", "Registry root directory")
	runTaskCmd.Flags().StringVar(&runTaskJobID, "job-id", "", "Job id to run")
	_ = runTaskCmd.MarkFlagRequired("root")
	_ = runTaskCmd.MarkFlagRequired("job-id")
}

func runRunTask(_ *cobra.Command, _ []string) error {
	if runTaskRoot == "" || runTaskJobID == "" {
		return exitError(foundry.ExitInvalidArgument, "Missing runner arguments",
			fmt.Errorf("--root and --job-id are required"))
	}
	if err := local.RunTask(runTaskRoot, runTaskJobID); err != nil {
		// The failure is already recorded as a fail event in the
		// registry; the runner's own exit code is informational.
		return exitError(foundry.ExitExternalServiceUnavailable, "Task failed", err)
	}
	return nil
}
