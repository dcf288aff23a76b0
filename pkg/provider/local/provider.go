package local

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/3leaps/jobscope/pkg/jobs"
	"github.com/3leaps/jobscope/pkg/provider"
)

// Config configures the local provider.
type Config struct {
	// Root is the registry root directory (required).
	Root string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Root) == "" {
		return fmt.Errorf("registry root is required")
	}
	return nil
}

// Provider implements provider.Provider over the on-disk job registry.
type Provider struct {
	registry *Registry
}

var _ provider.Provider = (*Provider)(nil)

func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Provider{registry: NewRegistry(cfg.Root)}, nil
}

// Registry exposes the underlying registry for the submission executor.
func (p *Provider) Registry() *Registry {
	return p.registry
}

func (p *Provider) Type() provider.Type { return provider.TypeLocal }

func (p *Provider) Close() error { return nil }

// Capabilities: the registry is scanned in-process, so id, name, and
// creation-window filters are applied during the scan. Labels and
// statuses are left to the engine's post-filter.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		JobIDs:        true,
		Names:         true,
		CreatedAfter:  true,
		CreatedBefore: true,
	}
}

func (p *Provider) List(ctx context.Context, c provider.Criteria) ([]jobs.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := p.registry.List()
	if err != nil {
		return nil, &provider.BackendError{Op: "List", Provider: provider.TypeLocal, Err: err}
	}

	ids := toSet(c.JobIDs)
	names := toSet(c.Names)

	out := make([]jobs.Job, 0, len(records))
	for _, rec := range records {
		if len(ids) > 0 && !ids[rec.JobID] {
			continue
		}
		if len(names) > 0 && !names[rec.Name] {
			continue
		}
		if !c.CreatedAfter.IsZero() && !rec.CreatedAt.After(c.CreatedAfter) {
			continue
		}
		if !c.CreatedBefore.IsZero() && !rec.CreatedAt.Before(c.CreatedBefore) {
			continue
		}
		out = append(out, toJob(rec))
	}
	return out, nil
}

func (p *Provider) Describe(ctx context.Context, jobIDs []string) ([]jobs.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(jobIDs))
	out := make([]jobs.Job, 0, len(jobIDs))
	for _, id := range jobIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		rec, err := p.registry.Get(id)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, &provider.BackendError{Op: "Describe", Provider: provider.TypeLocal, JobID: id, Err: err}
		}
		out = append(out, toJob(*rec))
	}
	return out, nil
}

// toJob converts a registry record into the uniform model.
//
// Zombie detection mirrors the registry's ownership rules: the reader
// never rewrites job.json, but a record whose process is gone without a
// terminal event derives an unknown status via the degraded flag.
func toJob(rec jobRecord) jobs.Job {
	zombie := !rec.finished() && rec.PID > 0 && !isProcessAlive(rec.PID)

	tasks := make([]jobs.Task, 0, len(rec.Tasks))
	for _, t := range rec.Tasks {
		events := make([]jobs.Event, 0, len(t.Events))
		for _, ev := range t.Events {
			events = append(events, jobs.Event{Name: ev.Name, Time: ev.Time})
		}
		tasks = append(tasks, jobs.Task{
			TaskID:     t.TaskID,
			Events:     events,
			Attributes: t.Attributes,
			Degraded:   zombie && len(events) > 0,
		})
	}

	return jobs.Job{
		JobID:      rec.JobID,
		Name:       rec.Name,
		CreateTime: rec.CreatedAt,
		Labels:     rec.Labels,
		Provider:   provider.TypeLocal.String(),
		Tasks:      tasks,
	}
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
