package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/jobscope/pkg/provider/local"
)

var (
	logsStream string
	logsTail   int
	logsFollow bool
)

var logsCmd = &cobra.Command{
	Use:   "logs <job_id>",
	Short: "Show captured output for a local job",
	Long: `Show the captured stdout/stderr of a job on the local backend. Short
job id prefixes from the status table are accepted when unambiguous.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsStream, "stream", "stdout", "Log stream: stdout, stderr, or both")
	logsCmd.Flags().IntVar(&logsTail, "tail", 200, "Show last N lines (0 = whole log)")
	logsCmd.Flags().BoolVar(&logsFollow, "follow", false, "Follow log output")
}

func runLogs(_ *cobra.Command, args []string) error {
	if !appConfig.Providers.Local.Enabled {
		return exitError(foundry.ExitInvalidArgument, "Local provider is disabled",
			fmt.Errorf("enable providers.local in configuration to read job logs"))
	}

	registry := local.NewRegistry(appConfig.Providers.Local.Root)
	jobID, err := resolveLocalJobID(registry.RootDir(), args[0])
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Job not found", err)
	}

	stdoutPath := filepath.Join(registry.JobDir(jobID), "stdout.log")
	stderrPath := filepath.Join(registry.JobDir(jobID), "stderr.log")

	stream := strings.TrimSpace(strings.ToLower(logsStream))
	tailN := logsTail
	if tailN < 0 {
		tailN = 0
	}

	switch stream {
	case "stdout":
		return emitLog(stdoutPath, tailN, logsFollow)
	case "stderr":
		return emitLog(stderrPath, tailN, logsFollow)
	case "both":
		if err := emitLog(stdoutPath, tailN, false); err != nil {
			return err
		}
		return emitLog(stderrPath, tailN, logsFollow)
	default:
		return exitError(foundry.ExitInvalidArgument, "Invalid --stream value",
			fmt.Errorf("expected stdout, stderr, or both; got %q", logsStream))
	}
}

// resolveLocalJobID accepts a full job id or an unambiguous prefix
// (status tables show the first 12 characters).
func resolveLocalJobID(root, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("job_id is required")
	}

	if _, err := os.Stat(filepath.Join(root, input, "job.json")); err == nil {
		return input, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("no local job with id %s", input)
	}
	var matches []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), input) {
			matches = append(matches, e.Name())
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no local job with id %s", input)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("job id prefix %s is ambiguous (%d matches); use the full id", input, len(matches))
	}
}

func emitLog(path string, tailN int, follow bool) error {
	f, err := os.Open(path)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to open log", err)
	}
	defer func() { _ = f.Close() }()

	if tailN <= 0 {
		if _, err := io.Copy(os.Stdout, f); err != nil {
			return exitError(foundry.ExitFileReadError, "Failed to read log", err)
		}
	} else {
		lines, err := tailLines(f, tailN)
		if err != nil {
			return exitError(foundry.ExitFileReadError, "Failed to read log", err)
		}
		for _, line := range lines {
			_, _ = fmt.Fprintln(os.Stdout, line)
		}
	}

	if !follow {
		return nil
	}

	// Simple polling follow: re-scan whenever the file grows.
	for {
		pos, _ := f.Seek(0, io.SeekCurrent)
		st, err := f.Stat()
		if err != nil {
			return exitError(foundry.ExitFileReadError, "Failed to stat log", err)
		}
		if st.Size() > pos {
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				_, _ = fmt.Fprintln(os.Stdout, scanner.Text())
			}
			if err := scanner.Err(); err != nil {
				return exitError(foundry.ExitFileReadError, "Failed to read log", err)
			}
			continue
		}
		time.Sleep(250 * time.Millisecond)
	}
}

// tailLines keeps the last n lines of r in a sliding window.
func tailLines(r io.Reader, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	scanner := bufio.NewScanner(r)
	buf := make([]string, 0, n)
	for scanner.Scan() {
		line := scanner.Text()
		if len(buf) < n {
			buf = append(buf, line)
			continue
		}
		copy(buf, buf[1:])
		buf[n-1] = line
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return buf, nil
}
