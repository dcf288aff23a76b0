package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/jobscope/internal/observability"
	"github.com/3leaps/jobscope/pkg/output"
	"github.com/3leaps/jobscope/pkg/query"
)

var (
	statusJobs        []string
	statusNames       []string
	statusLabels      []string
	statusStatuses    []string
	statusAge         string
	statusFull        bool
	statusFormat      string
	statusProviders   []string
	statusAllRequired bool
	statusTimeout     time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query job status across backends",
	Long: `Query job status across all configured backends.

With no filters, every job the backends know about is returned, newest
first. Filters combine with AND semantics; repeated values within one
filter combine with OR. Zero matches is a successful empty result.

Exit codes distinguish empty results (success) from backend failures:
a query that reached every backend but matched nothing exits zero,
while a backend that could not be queried exits non-zero even when
other backends produced rows.`,
	Example: `  # All jobs, newest first
  jobscope status

  # Running jobs submitted in the last two days
  jobscope status --status RUNNING --age 2d

  # One job, full event detail, machine-readable
  jobscope status --jobs 0d9bb9e2 --full --format jsonl

  # Any status, including canceled
  jobscope status --status '*'`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringSliceVar(&statusJobs, "jobs", nil, "Job ids to match")
	statusCmd.Flags().StringSliceVar(&statusNames, "names", nil, "Job names to match")
	statusCmd.Flags().StringArrayVar(&statusLabels, "label", nil, "Label filter key=value (repeatable, AND)")
	statusCmd.Flags().StringSliceVar(&statusStatuses, "status", nil, "Statuses to match; '*' matches any")
	statusCmd.Flags().StringVar(&statusAge, "age", "", "Only jobs created within this age (e.g. 3h, 2d)")
	statusCmd.Flags().BoolVar(&statusFull, "full", false, "Verbose output: raw events and task detail")
	statusCmd.Flags().StringVar(&statusFormat, "format", "table", "Output format: table, jsonl, or yaml")
	statusCmd.Flags().StringSliceVar(&statusProviders, "providers", nil, "Restrict to these backends (default all enabled)")
	statusCmd.Flags().BoolVar(&statusAllRequired, "all-providers-required", false, "Fail the query if any backend fails")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 0, "Per-backend timeout (default from config)")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	q, err := buildStatusQuery()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid query", err)
	}

	writer, err := newWriter(statusFormat, os.Stdout)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --format value", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := buildProviders(ctx, appConfig, statusProviders)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to configure backends", err)
	}
	defer closeProviders(providers)

	timeout := appConfig.Engine.Timeout
	if statusTimeout > 0 {
		timeout = statusTimeout
	}
	engine := query.New(providers,
		query.WithTimeout(timeout),
		query.WithLogger(observability.CLILogger),
	)

	result, err := engine.Run(ctx, *q)
	if err != nil {
		if errors.Is(err, query.ErrInvalidCriteria) {
			return exitError(foundry.ExitInvalidArgument, "Invalid query", err)
		}
		if ctx.Err() != nil {
			return exitError(foundry.ExitSignalInt, "Query cancelled", err)
		}
		return exitError(foundry.ExitExternalServiceUnavailable, "Query failed", err)
	}

	for _, j := range result.Jobs {
		if werr := writer.WriteJob(output.NewJobView(j, statusFull)); werr != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write job record", werr)
		}
	}
	summary := output.SummaryView{Matched: len(result.Jobs), Backends: len(providers)}
	for _, f := range result.Failures {
		summary.FailedBackends = append(summary.FailedBackends, f.Provider.String())
		if werr := writer.WriteFailure(output.ErrorView{
			Provider: f.Provider.String(),
			Message:  f.Err.Error(),
		}); werr != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write failure record", werr)
		}
	}
	if werr := writer.WriteSummary(summary); werr != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write summary record", werr)
	}
	if werr := writer.Close(); werr != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to flush output", werr)
	}

	// Partial results render everything that was found, but still exit
	// non-zero: the caller cannot tell whether the failed backend held
	// matching jobs.
	if result.Partial() {
		return exitError(foundry.ExitExternalServiceUnavailable,
			"Query completed with failed backends",
			fmt.Errorf("failed backends: %s", strings.Join(summary.FailedBackends, ", ")))
	}
	return nil
}

func buildStatusQuery() (*query.Query, error) {
	q := &query.Query{
		JobIDs:               statusJobs,
		Names:                statusNames,
		Statuses:             statusStatuses,
		Full:                 statusFull,
		AllProvidersRequired: statusAllRequired,
	}

	for _, pair := range statusLabels {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: label must be key=value, got %q", query.ErrInvalidCriteria, pair)
		}
		if q.Labels == nil {
			q.Labels = make(map[string]string)
		}
		q.Labels[key] = value
	}

	if statusAge != "" {
		age, err := query.ParseAge(statusAge)
		if err != nil {
			return nil, err
		}
		q.Age = age
	}

	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

func newWriter(format string, out *os.File) (output.Writer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "table":
		return output.NewTableWriter(out), nil
	case "jsonl":
		return output.NewJSONLWriter(out), nil
	case "yaml":
		return output.NewYAMLWriter(out), nil
	default:
		return nil, fmt.Errorf("expected table, jsonl, or yaml; got %q", format)
	}
}
