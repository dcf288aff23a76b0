// Package queue implements the provider interface for the Redis-backed
// queue backend.
//
// The queue service keeps one hash per job plus an append-only event
// list, and maintains a set of known job ids:
//
//	<prefix>jobs:index              set of job ids
//	<prefix>job:<id>                hash: name, labels, created_at
//	<prefix>job:<id>:events         list of JSON {"name","ts"} entries
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/3leaps/jobscope/pkg/events"
	"github.com/3leaps/jobscope/pkg/jobs"
	"github.com/3leaps/jobscope/pkg/provider"
)

// Config configures a queue provider.
type Config struct {
	// Addr is the Redis host:port (required).
	Addr string

	// Password authenticates to Redis. Empty for no auth.
	Password string

	// DB selects the Redis logical database.
	DB int

	// KeyPrefix namespaces all queue keys. Optional.
	KeyPrefix string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("redis address is required")
	}
	return nil
}

// Provider implements provider.Provider over the queue's Redis state.
// The underlying client pools connections and is safe for concurrent
// queries.
type Provider struct {
	client     *redis.Client
	prefix     string
	retry      provider.RetryPolicy
	normalizer *events.Normalizer
}

var _ provider.Provider = (*Provider)(nil)

func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Provider{
		client:     client,
		prefix:     cfg.KeyPrefix,
		retry:      provider.DefaultRetryPolicy(),
		normalizer: events.Queue(),
	}, nil
}

func (p *Provider) Type() provider.Type { return provider.TypeQueue }

func (p *Provider) Close() error { return p.client.Close() }

// Capabilities: ids resolve to direct key reads. Everything else is
// post-filtered by the engine.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{JobIDs: true}
}

func (p *Provider) indexKey() string          { return p.prefix + "jobs:index" }
func (p *Provider) jobKey(id string) string   { return p.prefix + "job:" + id }
func (p *Provider) eventKey(id string) string { return p.prefix + "job:" + id + ":events" }

func (p *Provider) List(ctx context.Context, c provider.Criteria) ([]jobs.Job, error) {
	ids := c.JobIDs
	if len(ids) == 0 {
		var err error
		ids, err = p.listIDs(ctx)
		if err != nil {
			return nil, err
		}
	}
	return p.Describe(ctx, ids)
}

func (p *Provider) listIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := provider.Retry(ctx, p.retry, func() error {
		var callErr error
		ids, callErr = p.client.SMembers(ctx, p.indexKey()).Result()
		if callErr != nil {
			return p.wrapError("List", "", callErr)
		}
		return nil
	})
	return ids, err
}

func (p *Provider) Describe(ctx context.Context, jobIDs []string) ([]jobs.Job, error) {
	seen := make(map[string]bool, len(jobIDs))
	out := make([]jobs.Job, 0, len(jobIDs))

	for _, id := range jobIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		var fields map[string]string
		var rawEvents []string
		err := provider.Retry(ctx, p.retry, func() error {
			var callErr error
			fields, callErr = p.client.HGetAll(ctx, p.jobKey(id)).Result()
			if callErr != nil {
				return p.wrapError("Describe", id, callErr)
			}
			rawEvents, callErr = p.client.LRange(ctx, p.eventKey(id), 0, -1).Result()
			if callErr != nil && !errors.Is(callErr, redis.Nil) {
				return p.wrapError("Describe", id, callErr)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			// Unknown id: skipped, not an error.
			continue
		}
		out = append(out, p.decodeJob(id, fields, rawEvents))
	}
	return out, nil
}

// queueEvent is the wire shape of one event list entry.
type queueEvent struct {
	Name string    `json:"name"`
	TS   time.Time `json:"ts"`
}

// decodeJob converts the raw hash and event list into the uniform
// model. Malformed pieces degrade the task instead of dropping it.
func (p *Provider) decodeJob(id string, fields map[string]string, rawEvents []string) jobs.Job {
	j := jobs.Job{
		JobID:    id,
		Name:     fields["name"],
		Provider: provider.TypeQueue.String(),
	}

	degraded := false
	if created := fields["created_at"]; created != "" {
		ts, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			degraded = true
		} else {
			j.CreateTime = ts
		}
	}
	if rawLabels := fields["labels"]; rawLabels != "" {
		if err := json.Unmarshal([]byte(rawLabels), &j.Labels); err != nil {
			degraded = true
		}
	}

	task := jobs.Task{}
	if worker := fields["worker"]; worker != "" {
		task.Attributes = map[string]string{"worker": worker}
	}
	for _, raw := range rawEvents {
		var qe queueEvent
		if err := json.Unmarshal([]byte(raw), &qe); err != nil {
			degraded = true
			continue
		}
		ev, err := p.normalizer.Name(qe.Name, qe.TS)
		if err != nil {
			degraded = true
			continue
		}
		task.Events = append(task.Events, ev)
	}
	task.Degraded = degraded

	j.Tasks = []jobs.Task{task}
	return j
}

// wrapError classifies Redis failures. NOAUTH/WRONGPASS are auth
// errors; anything else that is not a context error is transient.
func (p *Provider) wrapError(op, jobID string, err error) error {
	wrapped := &provider.BackendError{
		Op:       op,
		Provider: provider.TypeQueue,
		JobID:    jobID,
		Err:      err,
	}

	msg := err.Error()
	switch {
	case errors.Is(err, redis.Nil):
		wrapped.Err = provider.ErrJobNotFound
	case strings.HasPrefix(msg, "NOAUTH"), strings.HasPrefix(msg, "WRONGPASS"), strings.HasPrefix(msg, "NOPERM"):
		wrapped.Err = provider.ErrAuth
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Preserve cancellation.
	default:
		wrapped.Err = provider.ErrBackendUnavailable
	}
	return wrapped
}
