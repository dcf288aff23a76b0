package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/jobscope/pkg/jobs"
)

var ts = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestPipelinesV2Name(t *testing.T) {
	n := PipelinesV2()

	tests := []struct {
		in      string
		want    string
		wantRaw string
	}{
		{"WorkerAssigned", jobs.EventStart, "WorkerAssigned"},
		{"PullStarted", jobs.EventPullingImage, "PullStarted"},
		{"ContainerStarted", jobs.EventRunning, "ContainerStarted"},
		{"Succeeded", jobs.EventOK, "Succeeded"},
		{"Cancelled", jobs.EventCanceled, "Cancelled"},
		// Unknown provider events pass through verbatim, never dropped.
		{"PreemptionNotice", "PreemptionNotice", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ev, err := n.Name(tt.in, ts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Name)
			assert.Equal(t, tt.wantRaw, ev.Raw)
			assert.Equal(t, ts, ev.Time)
		})
	}
}

func TestPipelinesV1Code(t *testing.T) {
	n := PipelinesV1()

	ev, err := n.Code(6, ts)
	require.NoError(t, err)
	assert.Equal(t, jobs.EventOK, ev.Name)
	assert.Equal(t, "code:6", ev.Raw)

	ev, err = n.Code(42, ts)
	require.NoError(t, err)
	assert.Equal(t, "code:42", ev.Name)
	assert.Empty(t, ev.Raw)
}

func TestMalformedEvents(t *testing.T) {
	t.Run("empty name", func(t *testing.T) {
		_, err := Queue().Name("", ts)
		assert.ErrorIs(t, err, ErrMalformedEvent)
	})

	t.Run("zero timestamp", func(t *testing.T) {
		_, err := PipelinesV2().Name("Succeeded", time.Time{})
		assert.ErrorIs(t, err, ErrMalformedEvent)
	})

	t.Run("non-positive code", func(t *testing.T) {
		_, err := PipelinesV1().Code(0, ts)
		assert.ErrorIs(t, err, ErrMalformedEvent)
	})
}

func TestOrderPreserved(t *testing.T) {
	// The normalizer maps one event at a time; this guards the contract
	// that a mapped stream keeps backend emission order.
	n := PipelinesV2()
	raw := []string{"WorkerAssigned", "PullStarted", "Localization", "ContainerStarted", "Delocalization", "Succeeded"}

	var out []jobs.Event
	for i, name := range raw {
		ev, err := n.Name(name, ts.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		out = append(out, ev)
	}

	want := []string{
		jobs.EventStart, jobs.EventPullingImage, jobs.EventLocalizing,
		jobs.EventRunning, jobs.EventDelocalizing, jobs.EventOK,
	}
	for i, ev := range out {
		assert.Equal(t, want[i], ev.Name)
		if i > 0 {
			assert.True(t, ev.Time.After(out[i-1].Time))
		}
	}
}
