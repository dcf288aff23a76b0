package local

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/3leaps/jobscope/pkg/jobs"
)

// ErrJobFinished is returned by Cancel when the job already reached a
// terminal outcome.
var ErrJobFinished = errors.New("job already finished")

// Executor spawns and manages local background jobs.
//
// Submission spawns a managed child process that re-invokes the jobscope
// binary in runner mode, capturing stdout/stderr to per-job log files.
// The runner owns all registry writes after submission.
type Executor struct {
	registry *Registry
}

func NewExecutor(root string) *Executor {
	return &Executor{registry: NewRegistry(root)}
}

func (e *Executor) Registry() *Registry {
	return e.registry
}

func (e *Executor) stdoutPath(jobID string) string {
	return filepath.Join(e.registry.JobDir(jobID), "stdout.log")
}

func (e *Executor) stderrPath(jobID string) string {
	return filepath.Join(e.registry.JobDir(jobID), "stderr.log")
}

// SubmitSpec describes one local job submission.
type SubmitSpec struct {
	Name    string
	Labels  map[string]string
	Command string
}

// Submit creates the registry record and spawns a managed child running:
//
//	jobscope __run-task --root <registry_root> --job-id <job_id>
//
// It returns once the child has started. The returned job is in the
// transient just-submitted state (no events yet).
func (e *Executor) Submit(spec SubmitSpec) (*jobs.Job, error) {
	if e == nil || e.registry == nil {
		return nil, fmt.Errorf("executor is not initialized")
	}
	if spec.Command == "" {
		return nil, fmt.Errorf("command is required")
	}

	jobID := uuid.New().String()
	rec := &jobRecord{
		JobID:     jobID,
		Name:      spec.Name,
		Labels:    spec.Labels,
		Command:   spec.Command,
		CreatedAt: time.Now().UTC(),
		Tasks:     []taskRecord{{Events: []eventRecord{}}},
	}
	if err := e.registry.Write(rec); err != nil {
		return nil, err
	}

	stdoutFile, err := os.Create(e.stdoutPath(jobID))
	if err != nil {
		return nil, fmt.Errorf("create stdout log: %w", err)
	}
	stderrFile, err := os.Create(e.stderrPath(jobID))
	if err != nil {
		_ = stdoutFile.Close()
		return nil, fmt.Errorf("create stderr log: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		_ = stdoutFile.Close()
		_ = stderrFile.Close()
		return nil, fmt.Errorf("resolve executable: %w", err)
	}

	cmd := exec.Command(exe, "__run-task", "--root", e.registry.RootDir(), "--job-id", jobID)
	cmd.Stdout = stdoutFile
	cmd.Stderr = stderrFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		_ = stdoutFile.Close()
		_ = stderrFile.Close()
		return nil, fmt.Errorf("start managed job: %w", err)
	}
	_ = stdoutFile.Close()
	_ = stderrFile.Close()

	rec.PID = cmd.Process.Pid
	if err := e.registry.Write(rec); err != nil {
		return nil, err
	}
	// The parent does not wait; the runner process is session leader and
	// outlives this invocation.
	_ = cmd.Process.Release()

	job := toJob(*rec)
	return &job, nil
}

// RunTask executes a submitted job's command in-process. It is invoked
// by the hidden runner subcommand inside the managed child.
func RunTask(root, jobID string) error {
	registry := NewRegistry(root)
	rec, err := registry.Get(jobID)
	if err != nil {
		return fmt.Errorf("load job record: %w", err)
	}

	host, _ := os.Hostname()
	attrs := map[string]string{"pid": strconv.Itoa(os.Getpid())}
	if host != "" {
		attrs["host"] = host
	}
	if err := registry.SetTaskAttributes(jobID, "", attrs); err != nil {
		return err
	}

	if err := registry.AppendEvent(jobID, "", jobs.EventStart, time.Now()); err != nil {
		return err
	}

	cmd := exec.Command("/bin/sh", "-c", rec.Command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := registry.AppendEvent(jobID, "", jobs.EventRunning, time.Now()); err != nil {
		return err
	}

	runErr := cmd.Run()

	outcome := jobs.EventOK
	if runErr != nil {
		outcome = jobs.EventFail
	}
	if err := registry.AppendEvent(jobID, "", outcome, time.Now()); err != nil {
		return err
	}
	return runErr
}

// Cancel signals a running job and records the canceled outcome.
func (e *Executor) Cancel(jobID string) error {
	rec, err := e.registry.Get(jobID)
	if err != nil {
		return err
	}
	if rec.finished() {
		return fmt.Errorf("job %s: %w", jobID, ErrJobFinished)
	}

	if rec.PID > 0 && isProcessAlive(rec.PID) {
		// Negative pid signals the runner's process group (Setsid above).
		if err := syscall.Kill(-rec.PID, syscall.SIGTERM); err != nil {
			return fmt.Errorf("signal job %s: %w", jobID, err)
		}
	}
	return e.registry.AppendEvent(jobID, "", jobs.EventCanceled, time.Now())
}
