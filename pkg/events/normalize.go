// Package events maps provider-native lifecycle transitions onto the
// canonical event vocabulary defined in pkg/jobs.
//
// Normalization policy: unknown provider events pass through verbatim so
// provider-specific detail stays visible in full output; they are never
// dropped. Event order is preserved exactly as emitted by the backend -
// the normalizer never reorders by name or timestamp.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/3leaps/jobscope/pkg/jobs"
)

// ErrMalformedEvent indicates a provider event payload that can neither
// be mapped nor passed through verbatim (missing name and code, or a
// zero timestamp). The owning task is marked degraded, not dropped.
var ErrMalformedEvent = errors.New("malformed provider event")

// Normalizer translates one backend's native event labels into the
// canonical vocabulary.
type Normalizer struct {
	provider string
	names    map[string]string
	codes    map[int]string
}

// Local emits canonical names natively; the mapping is identity.
func Local() *Normalizer {
	return &Normalizer{provider: "local"}
}

// PipelinesV1 maps the v1 numeric operation codes.
func PipelinesV1() *Normalizer {
	return &Normalizer{
		provider: "pipelines-v1",
		codes: map[int]string{
			1: jobs.EventStart,
			2: jobs.EventPullingImage,
			3: jobs.EventLocalizing,
			4: jobs.EventRunning,
			5: jobs.EventDelocalizing,
			6: jobs.EventOK,
			7: jobs.EventFail,
			8: jobs.EventCanceled,
		},
	}
}

// PipelinesV2 maps the v2 named operation events.
func PipelinesV2() *Normalizer {
	return &Normalizer{
		provider: "pipelines-v2",
		names: map[string]string{
			"WorkerAssigned":   jobs.EventStart,
			"PullStarted":      jobs.EventPullingImage,
			"Localization":     jobs.EventLocalizing,
			"ContainerStarted": jobs.EventRunning,
			"Delocalization":   jobs.EventDelocalizing,
			"Succeeded":        jobs.EventOK,
			"Failed":           jobs.EventFail,
			"Cancelled":        jobs.EventCanceled,
		},
	}
}

// Queue maps the queue backend's state labels.
func Queue() *Normalizer {
	return &Normalizer{
		provider: "queue",
		names: map[string]string{
			"started":   jobs.EventStart,
			"executing": jobs.EventRunning,
			"completed": jobs.EventOK,
			"failed":    jobs.EventFail,
			"canceled":  jobs.EventCanceled,
		},
	}
}

// Name normalizes a named provider event. Unmapped names pass through
// verbatim with Raw left empty, so the caller cannot tell a canonical
// emission from an already-canonical provider label.
func (n *Normalizer) Name(name string, ts time.Time) (jobs.Event, error) {
	if name == "" || ts.IsZero() {
		return jobs.Event{}, fmt.Errorf("%w: provider=%s name=%q", ErrMalformedEvent, n.provider, name)
	}
	if mapped, ok := n.names[name]; ok {
		return jobs.Event{Name: mapped, Time: ts, Raw: name}, nil
	}
	return jobs.Event{Name: name, Time: ts}, nil
}

// Code normalizes a numeric provider event code.
func (n *Normalizer) Code(code int, ts time.Time) (jobs.Event, error) {
	if ts.IsZero() {
		return jobs.Event{}, fmt.Errorf("%w: provider=%s code=%d", ErrMalformedEvent, n.provider, code)
	}
	if mapped, ok := n.codes[code]; ok {
		return jobs.Event{Name: mapped, Time: ts, Raw: fmt.Sprintf("code:%d", code)}, nil
	}
	if code <= 0 {
		return jobs.Event{}, fmt.Errorf("%w: provider=%s code=%d", ErrMalformedEvent, n.provider, code)
	}
	// Unknown but plausible code: pass through as an extension event.
	return jobs.Event{Name: fmt.Sprintf("code:%d", code), Time: ts}, nil
}
