// Package output renders query results in machine-parseable and
// human-readable forms.
//
// JSONL output is structured as typed record envelopes; each line is a
// self-contained JSON object that can be parsed independently. Table
// and YAML renderers share the same view structs, so every format
// exposes the same fields.
package output

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/3leaps/jobscope/pkg/jobs"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: jobscope.<type>.v<version>
const (
	// TypeJob identifies job status records.
	TypeJob = "jobscope.job.v1"

	// TypeError identifies backend failure records.
	TypeError = "jobscope.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "jobscope.summary.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "jobscope.job.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// EventView is one rendered lifecycle event.
type EventView struct {
	Name string    `json:"name" yaml:"name"`
	Time time.Time `json:"time" yaml:"time"`

	// Raw is the provider-native label. Full output only.
	Raw string `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// TaskView is the per-task detail rendered in full output.
type TaskView struct {
	TaskID     string            `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	Status     jobs.Status       `json:"status" yaml:"status"`
	Events     []EventView       `json:"events" yaml:"events"`
	Attributes map[string]string `json:"provider_attributes,omitempty" yaml:"provider_attributes,omitempty"`
}

// JobView is the data payload for one job status record.
//
// Summary view carries the canonical event timeline only; full view
// adds raw provider event detail and per-task provider attributes.
type JobView struct {
	JobID      string            `json:"job_id" yaml:"job_id"`
	JobName    string            `json:"job_name,omitempty" yaml:"job_name,omitempty"`
	Provider   string            `json:"provider" yaml:"provider"`
	Status     jobs.Status       `json:"status" yaml:"status"`
	CreateTime time.Time         `json:"create_time" yaml:"create_time"`
	Labels     map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Events     []EventView       `json:"events" yaml:"events"`
	Tasks      []TaskView        `json:"tasks,omitempty" yaml:"tasks,omitempty"`
}

// NewJobView projects a job record into its rendered form.
func NewJobView(j jobs.Job, full bool) JobView {
	view := JobView{
		JobID:      j.JobID,
		JobName:    j.Name,
		Provider:   j.Provider,
		Status:     j.Status(),
		CreateTime: j.CreateTime,
		Labels:     j.Labels,
		Events:     []EventView{},
	}

	for _, t := range j.Tasks {
		for _, ev := range t.Events {
			if !full && !jobs.IsCanonicalEvent(ev.Name) {
				continue
			}
			e := EventView{Name: ev.Name, Time: ev.Time}
			if full {
				e.Raw = ev.Raw
			}
			view.Events = append(view.Events, e)
		}
	}

	if full {
		view.Tasks = make([]TaskView, 0, len(j.Tasks))
		for _, t := range j.Tasks {
			tv := TaskView{TaskID: t.TaskID, Status: t.Status(), Events: []EventView{}, Attributes: t.Attributes}
			for _, ev := range t.Events {
				tv.Events = append(tv.Events, EventView{Name: ev.Name, Time: ev.Time, Raw: ev.Raw})
			}
			view.Tasks = append(view.Tasks, tv)
		}
	}

	return view
}

// ErrorView is the data payload for one failed backend.
type ErrorView struct {
	// Provider identifies the failed backend.
	Provider string `json:"provider" yaml:"provider"`

	// Message is a human-readable failure description.
	Message string `json:"message" yaml:"message"`
}

// SummaryView is the data payload for the final summary record.
type SummaryView struct {
	// Matched is the number of jobs in the result.
	Matched int `json:"matched"`

	// Backends is the number of backends queried.
	Backends int `json:"backends"`

	// FailedBackends lists backends that could not serve the query.
	FailedBackends []string `json:"failed_backends,omitempty"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
