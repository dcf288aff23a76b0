package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/jobscope/pkg/provider/local"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <job_id>...",
	Short: "Cancel running local jobs",
	Long: `Cancel one or more running jobs on the local backend. The runner's
process group receives SIGTERM and the job record gains a canceled
outcome event.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCancel,
}

var cancelPurge bool

func init() {
	cancelCmd.Flags().BoolVar(&cancelPurge, "purge", false,
		"Remove the job's registry record and logs after canceling")
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(_ *cobra.Command, args []string) error {
	if !appConfig.Providers.Local.Enabled {
		return exitError(foundry.ExitInvalidArgument, "Local provider is disabled",
			fmt.Errorf("enable providers.local in configuration to cancel jobs"))
	}

	executor := local.NewExecutor(appConfig.Providers.Local.Root)

	var failed []string
	for _, jobID := range args {
		jobID = strings.TrimSpace(jobID)
		if jobID == "" {
			continue
		}
		if err := executor.Cancel(jobID); err != nil {
			if os.IsNotExist(err) {
				return exitError(foundry.ExitFileNotFound, "Job not found",
					fmt.Errorf("no local job with id %s", jobID))
			}
			// A finished job cannot be canceled, but it can still be purged.
			if !(cancelPurge && errors.Is(err, local.ErrJobFinished)) {
				failed = append(failed, fmt.Sprintf("%s: %v", jobID, err))
				continue
			}
		}
		if cancelPurge {
			if err := executor.Registry().Remove(jobID); err != nil {
				failed = append(failed, fmt.Sprintf("%s: purge: %v", jobID, err))
				continue
			}
		}
		_, _ = fmt.Fprintf(os.Stdout, "canceled=%s\n", jobID)
	}

	if len(failed) > 0 {
		return exitError(foundry.ExitFileWriteError, "Some jobs could not be canceled",
			fmt.Errorf("%s", strings.Join(failed, "; ")))
	}
	return nil
}
