// Package local implements the provider interface for jobs executed as
// local child processes.
//
// Job state lives in an on-disk registry owned by the submission side;
// the provider only reads it.
package local

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/3leaps/jobscope/pkg/jobs"
)

// Registry persists and loads job records from an on-disk directory.
//
// Directory layout:
//
//	<root>/<job_id>/job.json
//	<root>/<job_id>/stdout.log
//	<root>/<job_id>/stderr.log
//
// Root is expected to be under the app data dir. job.json is written
// atomically (temp file + rename) so readers never observe a torn
// record.
type Registry struct {
	root string
}

func NewRegistry(root string) *Registry {
	return &Registry{root: strings.TrimSpace(root)}
}

func (r *Registry) RootDir() string {
	return r.root
}

func (r *Registry) JobDir(jobID string) string {
	return filepath.Join(r.root, jobID)
}

func (r *Registry) jobPath(jobID string) string {
	return filepath.Join(r.JobDir(jobID), "job.json")
}

// eventRecord is one persisted lifecycle event. Event names in job.json
// use the canonical vocabulary directly.
type eventRecord struct {
	Name string    `json:"name"`
	Time time.Time `json:"time"`
}

// taskRecord is one persisted execution unit.
type taskRecord struct {
	TaskID     string            `json:"task_id,omitempty"`
	Events     []eventRecord     `json:"events"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// jobRecord is the persistent record written to job.json.
//
// The schema is designed for backward-compatible extension (additive
// fields).
type jobRecord struct {
	JobID     string            `json:"job_id"`
	Name      string            `json:"name,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	Command   string            `json:"command,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	PID       int               `json:"pid,omitempty"`
	Tasks     []taskRecord      `json:"tasks"`
}

func (r *Registry) ensureRoot() error {
	if strings.TrimSpace(r.root) == "" {
		return fmt.Errorf("registry root dir is empty")
	}
	return os.MkdirAll(r.root, 0755)
}

func (r *Registry) Write(record *jobRecord) error {
	if record == nil {
		return fmt.Errorf("job record is nil")
	}
	jobID := strings.TrimSpace(record.JobID)
	if jobID == "" {
		return fmt.Errorf("job_id is required")
	}
	if err := r.ensureRoot(); err != nil {
		return err
	}

	jobDir := r.JobDir(jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}

	b, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job record: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(jobDir, "job.json.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp job file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp job file: %w", err)
	}

	if err := os.Rename(tmpName, r.jobPath(jobID)); err != nil {
		return fmt.Errorf("rename job file: %w", err)
	}
	return nil
}

func (r *Registry) Get(jobID string) (*jobRecord, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("job_id is required")
	}
	b, err := os.ReadFile(r.jobPath(jobID))
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return nil, fmt.Errorf("job.json is empty")
	}

	var record jobRecord
	if err := json.Unmarshal([]byte(trimmed), &record); err != nil {
		return nil, fmt.Errorf("parse job.json: %w", err)
	}
	return &record, nil
}

func (r *Registry) List() ([]jobRecord, error) {
	if err := r.ensureRoot(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read registry root: %w", err)
	}

	out := make([]jobRecord, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rec, err := r.Get(entry.Name())
		if err != nil {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

// Remove deletes a job's registry directory, record and logs included.
// The job must exist; callers decide whether the job is safe to purge.
func (r *Registry) Remove(jobID string) error {
	if _, err := os.Stat(r.jobPath(jobID)); err != nil {
		return err
	}
	return os.RemoveAll(r.JobDir(jobID))
}

// AppendEvent appends one lifecycle event to a task's stream.
// The stream is append-only; events are never reordered or removed.
func (r *Registry) AppendEvent(jobID, taskID, name string, ts time.Time) error {
	rec, err := r.Get(jobID)
	if err != nil {
		return err
	}
	t := rec.task(taskID)
	t.Events = append(t.Events, eventRecord{Name: name, Time: ts.UTC()})
	return r.Write(rec)
}

// SetTaskAttributes merges provider attributes into a task.
func (r *Registry) SetTaskAttributes(jobID, taskID string, attrs map[string]string) error {
	rec, err := r.Get(jobID)
	if err != nil {
		return err
	}
	t := rec.task(taskID)
	if t.Attributes == nil {
		t.Attributes = make(map[string]string, len(attrs))
	}
	for k, v := range attrs {
		t.Attributes[k] = v
	}
	return r.Write(rec)
}

// task returns the task with the given id, creating it if absent.
func (rec *jobRecord) task(taskID string) *taskRecord {
	for i := range rec.Tasks {
		if rec.Tasks[i].TaskID == taskID {
			return &rec.Tasks[i]
		}
	}
	rec.Tasks = append(rec.Tasks, taskRecord{TaskID: taskID})
	return &rec.Tasks[len(rec.Tasks)-1]
}

func (rec *jobRecord) finished() bool {
	for _, t := range rec.Tasks {
		for i := len(t.Events) - 1; i >= 0; i-- {
			switch t.Events[i].Name {
			case jobs.EventOK, jobs.EventFail, jobs.EventCanceled:
				return true
			}
		}
	}
	return false
}

func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// signal 0 is supported on unix; it checks for existence without sending a signal.
	if err := p.Signal(os.Signal(syscall.Signal(0))); err != nil {
		return false
	}
	return true
}
