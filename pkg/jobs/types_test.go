package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func evt(name string, offset time.Duration) Event {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return Event{Name: name, Time: base.Add(offset)}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
		ok   bool
	}{
		{"RUNNING", StatusRunning, true},
		{"running", StatusRunning, true},
		{"Success", StatusSuccess, true},
		{"CANCELED", StatusCanceled, true},
		{"bogus", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseStatus(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTaskStatus(t *testing.T) {
	tests := []struct {
		name string
		task Task
		want Status
	}{
		{
			name: "no events yet",
			task: Task{},
			want: StatusPending,
		},
		{
			name: "started but not finished",
			task: Task{Events: []Event{evt(EventStart, 0), evt(EventPullingImage, time.Second)}},
			want: StatusRunning,
		},
		{
			name: "terminal ok",
			task: Task{Events: []Event{
				evt(EventStart, 0),
				evt(EventRunning, time.Second),
				evt(EventDelocalizing, 2*time.Second),
				evt(EventOK, 3*time.Second),
			}},
			want: StatusSuccess,
		},
		{
			name: "terminal fail",
			task: Task{Events: []Event{evt(EventStart, 0), evt(EventFail, time.Second)}},
			want: StatusFailure,
		},
		{
			name: "terminal canceled",
			task: Task{Events: []Event{evt(EventStart, 0), evt(EventCanceled, time.Second)}},
			want: StatusCanceled,
		},
		{
			name: "provider extension event after terminal does not change outcome",
			task: Task{Events: []Event{evt(EventStart, 0), evt(EventOK, time.Second), evt("billing-finalized", 2*time.Second)}},
			want: StatusSuccess,
		},
		{
			name: "degraded payload",
			task: Task{Degraded: true, Events: []Event{evt(EventStart, 0)}},
			want: StatusUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.task.Status())
		})
	}
}

func TestJobStatus(t *testing.T) {
	running := Task{Events: []Event{evt(EventStart, 0)}}
	success := Task{Events: []Event{evt(EventStart, 0), evt(EventOK, time.Second)}}
	failed := Task{Events: []Event{evt(EventStart, 0), evt(EventFail, time.Second)}}
	canceled := Task{Events: []Event{evt(EventStart, 0), evt(EventCanceled, time.Second)}}
	pending := Task{}

	tests := []struct {
		name  string
		tasks []Task
		want  Status
	}{
		{"zero tasks is transient pending", nil, StatusPending},
		{"all success", []Task{success, success}, StatusSuccess},
		{"any failure dominates", []Task{success, failed, running}, StatusFailure},
		{"canceled beats running", []Task{success, canceled, running}, StatusCanceled},
		{"mixed success and running", []Task{success, running}, StatusRunning},
		{"all pending", []Task{pending, pending}, StatusPending},
		{"least-advanced task governs", []Task{pending, success}, StatusPending},
		{"pending holds back a running job", []Task{pending, running}, StatusPending},
		{"pending holds back mixed progress", []Task{pending, running, success}, StatusPending},
		{"degraded task surfaces unknown", []Task{success, {Degraded: true}}, StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := Job{JobID: "j", Tasks: tt.tasks}
			assert.Equal(t, tt.want, j.Status())
		})
	}
}

func TestJobHasLabels(t *testing.T) {
	j := Job{Labels: map[string]string{"batch": "nightly", "team": "genomics"}}

	assert.True(t, j.HasLabels(nil))
	assert.True(t, j.HasLabels(map[string]string{"batch": "nightly"}))
	assert.True(t, j.HasLabels(map[string]string{"batch": "nightly", "team": "genomics"}))
	assert.False(t, j.HasLabels(map[string]string{"batch": "hourly"}))
	assert.False(t, j.HasLabels(map[string]string{"missing": "x"}))
}
