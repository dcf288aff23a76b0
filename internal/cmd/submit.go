package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/jobscope/internal/observability"
	"github.com/3leaps/jobscope/pkg/provider/local"
)

var (
	submitName   string
	submitLabels []string
)

var submitCmd = &cobra.Command{
	Use:   "submit -- <command>",
	Short: "Submit a command as a local background job",
	Long: `Submit a shell command as a managed background job on the local
backend. The job survives this invocation; track it with 'jobscope
status' and stop it with 'jobscope cancel'.`,
	Example: `  jobscope submit --name nightly-sync --label batch=demo -- rsync -a src/ dst/`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVar(&submitName, "name", "", "Job name")
	submitCmd.Flags().StringArrayVar(&submitLabels, "label", nil, "Label key=value (repeatable)")
}

func runSubmit(_ *cobra.Command, args []string) error {
	if !appConfig.Providers.Local.Enabled {
		return exitError(foundry.ExitInvalidArgument, "Local provider is disabled",
			fmt.Errorf("enable providers.local in configuration to submit jobs"))
	}

	labels := make(map[string]string, len(submitLabels))
	for _, pair := range submitLabels {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return exitError(foundry.ExitInvalidArgument, "Invalid --label value",
				fmt.Errorf("label must be key=value, got %q", pair))
		}
		labels[key] = value
	}

	executor := local.NewExecutor(appConfig.Providers.Local.Root)
	job, err := executor.Submit(local.SubmitSpec{
		Name:    submitName,
		Labels:  labels,
		Command: strings.Join(args, " "),
	})
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to submit job", err)
	}

	observability.CLILogger.Info("Job submitted",
		zap.String("job_id", job.JobID),
		zap.String("name", job.Name))
	_, _ = fmt.Fprintf(os.Stdout, "job_id=%s\n", job.JobID)
	return nil
}
