// Package provider defines the capability surface for job status backends.
//
// Providers translate backend-native job/task state into the uniform
// record model in pkg/jobs. They are strictly read-only: a provider
// never mutates backend state on behalf of a query. Authentication uses
// SDK default credential chains - providers should not implement custom
// auth logic.
package provider

import (
	"context"
	"time"

	"github.com/3leaps/jobscope/pkg/jobs"
)

// Provider abstracts one execution backend's job state.
//
// Implementations should:
//   - Push as much of the criteria as the backend filters natively and
//     declare exactly that in Capabilities; the query engine post-filters
//     the rest. Never silently drop a criterion.
//   - Retry transient failures internally with bounded backoff, and never
//     retry auth or malformed-request errors.
//   - Be safe for concurrent use by simultaneous queries.
type Provider interface {
	// Type identifies the backend kind.
	Type() Type

	// List returns a snapshot of jobs matching whatever subset of the
	// criteria the backend applies natively (see Capabilities).
	List(ctx context.Context, c Criteria) ([]jobs.Job, error)

	// Describe returns the jobs with the given ids. Unknown ids are
	// skipped, not errors; duplicate ids must not duplicate results.
	Describe(ctx context.Context, jobIDs []string) ([]jobs.Job, error)

	// Capabilities declares which criteria dimensions List applies
	// natively.
	Capabilities() Capabilities

	// Close releases any resources held by the provider.
	Close() error
}

// Criteria is the backend-agnostic filter input for List.
// Every field is optional; the zero value means no restriction on that
// dimension.
type Criteria struct {
	// JobIDs restricts to these job ids.
	JobIDs []string

	// Names restricts to these job names.
	Names []string

	// Labels requires every listed key to be present with a matching
	// value (AND semantics).
	Labels map[string]string

	// Statuses restricts to these derived statuses. Empty means any.
	Statuses []jobs.Status

	// CreatedAfter excludes jobs created at or before this instant.
	// Zero means unbounded.
	CreatedAfter time.Time

	// CreatedBefore excludes jobs created at or after this instant.
	// Zero means unbounded.
	CreatedBefore time.Time
}

// Empty reports whether the criteria places no restriction at all.
func (c Criteria) Empty() bool {
	return len(c.JobIDs) == 0 && len(c.Names) == 0 && len(c.Labels) == 0 &&
		len(c.Statuses) == 0 && c.CreatedAfter.IsZero() && c.CreatedBefore.IsZero()
}

// Capabilities declares which criteria dimensions a backend filters
// natively during List. The query engine re-applies identity dimensions
// (ids, names, labels) a provider reports false; status and the
// creation window are always evaluated on the merged job, since both
// depend on the full task set.
type Capabilities struct {
	JobIDs        bool
	Names         bool
	Labels        bool
	Statuses      bool
	CreatedAfter  bool
	CreatedBefore bool
}

// Type identifies a job status backend.
type Type string

const (
	// TypeLocal is the local process backend.
	TypeLocal Type = "local"

	// TypePipelines is the cloud pipelines backend (object-store state).
	TypePipelines Type = "pipelines"

	// TypeQueue is the Redis-backed queue backend.
	TypeQueue Type = "queue"
)

// String returns the string representation of the provider type.
func (t Type) String() string {
	return string(t)
}
