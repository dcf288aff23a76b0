// Package jobs defines the uniform job/task/event model shared by all
// backend providers.
//
// Providers translate their native state into these records; everything
// downstream (filtering, aggregation, rendering) operates on this model
// only. Status is always derived from the event history, never stored,
// so every computation is a pure function of a retrieved snapshot.
package jobs

import (
	"strings"
	"time"
)

// Status is the derived lifecycle status of a job or task.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusRunning  Status = "RUNNING"
	StatusSuccess  Status = "SUCCESS"
	StatusFailure  Status = "FAILURE"
	StatusCanceled Status = "CANCELED"

	// StatusUnknown marks a task whose provider payload could not be
	// normalized. The task is surfaced rather than dropped.
	StatusUnknown Status = "UNKNOWN"
)

// Statuses lists every valid status value, in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusPending,
		StatusRunning,
		StatusSuccess,
		StatusFailure,
		StatusCanceled,
		StatusUnknown,
	}
}

// ParseStatus converts a user-supplied status string into a Status.
// Matching is case-insensitive.
func ParseStatus(s string) (Status, bool) {
	for _, known := range Statuses() {
		if strings.EqualFold(s, string(known)) {
			return known, true
		}
	}
	return "", false
}

// Terminal reports whether the status is a final outcome.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusCanceled:
		return true
	}
	return false
}

// Canonical event vocabulary. Providers map their native transitions onto
// these names; anything a provider emits outside this vocabulary passes
// through verbatim and only appears in full output.
const (
	EventStart        = "start"
	EventPullingImage = "pulling-image"
	EventLocalizing   = "localizing-files"
	EventRunning      = "running-docker"
	EventDelocalizing = "delocalizing-files"
	EventOK           = "ok"
	EventFail         = "fail"
	EventCanceled     = "canceled"
)

// IsCanonicalEvent reports whether name belongs to the canonical vocabulary.
func IsCanonicalEvent(name string) bool {
	switch name {
	case EventStart, EventPullingImage, EventLocalizing, EventRunning,
		EventDelocalizing, EventOK, EventFail, EventCanceled:
		return true
	}
	return false
}

// terminalOutcome maps a canonical terminal event to its status.
func terminalOutcome(name string) (Status, bool) {
	switch name {
	case EventOK:
		return StatusSuccess, true
	case EventFail:
		return StatusFailure, true
	case EventCanceled:
		return StatusCanceled, true
	}
	return "", false
}

// Event is one timestamped lifecycle transition in a task's history.
type Event struct {
	// Name is the canonical event name, or the provider-native name
	// verbatim when no mapping exists.
	Name string `json:"name"`

	// Time is the backend clock value for the transition. Monotonic
	// within one task's stream, not across tasks.
	Time time.Time `json:"time"`

	// Raw is the provider-native label the event was mapped from, when
	// it differs from Name. Only rendered in full output.
	Raw string `json:"raw,omitempty"`
}

// Task is one execution unit within a job.
type Task struct {
	// TaskID is unique within the job. Empty for single-task jobs.
	TaskID string `json:"task_id,omitempty"`

	// Events is append-only and ordered as emitted by the backend.
	Events []Event `json:"events"`

	// Attributes holds backend-specific metadata (zone, instance id).
	// Populated asynchronously; may be empty until the backend schedules
	// the task.
	Attributes map[string]string `json:"attributes,omitempty"`

	// Degraded marks a task whose provider payload failed normalization.
	Degraded bool `json:"degraded,omitempty"`
}

// Status derives the task status from its latest event.
//
// No events means the task has not started (PENDING). A terminal event
// anywhere in the stream wins; otherwise the task is RUNNING.
func (t Task) Status() Status {
	if t.Degraded {
		return StatusUnknown
	}
	for i := len(t.Events) - 1; i >= 0; i-- {
		if s, ok := terminalOutcome(t.Events[i].Name); ok {
			return s
		}
	}
	if len(t.Events) == 0 {
		return StatusPending
	}
	return StatusRunning
}

// Job is a logical unit of submitted work, possibly fanned out into
// multiple tasks.
type Job struct {
	JobID      string            `json:"job_id"`
	Name       string            `json:"job_name,omitempty"`
	CreateTime time.Time         `json:"create_time"`
	Labels     map[string]string `json:"labels,omitempty"`
	Provider   string            `json:"provider"`
	Tasks      []Task            `json:"tasks"`
}

// Status derives the job status from the aggregate of its task statuses.
//
// FAILURE dominates, then CANCELED, then UNKNOWN; SUCCESS requires every
// task to have succeeded; otherwise the least-advanced task governs.
// A job with no tasks yet is in the transient just-submitted state and
// derives PENDING.
func (j Job) Status() Status {
	if len(j.Tasks) == 0 {
		return StatusPending
	}

	var anyCanceled, anyUnknown, anyRunning, anyPending bool
	allSuccess := true
	for _, t := range j.Tasks {
		switch t.Status() {
		case StatusFailure:
			return StatusFailure
		case StatusCanceled:
			anyCanceled = true
			allSuccess = false
		case StatusUnknown:
			anyUnknown = true
			allSuccess = false
		case StatusRunning:
			anyRunning = true
			allSuccess = false
		case StatusPending:
			anyPending = true
			allSuccess = false
		}
	}

	switch {
	case anyCanceled:
		return StatusCanceled
	case anyUnknown:
		return StatusUnknown
	case allSuccess:
		return StatusSuccess
	case anyPending:
		// PENDING is less advanced than RUNNING: a task that has not
		// started holds the whole job at PENDING.
		return StatusPending
	case anyRunning:
		return StatusRunning
	}
	return StatusRunning
}

// HasLabels reports whether the job carries every requested label with a
// matching value (AND semantics).
func (j Job) HasLabels(want map[string]string) bool {
	for k, v := range want {
		got, ok := j.Labels[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}
