// Package query implements the job status query engine: criteria
// validation, concurrent fan-out to backend providers, post-filtering,
// deduplication, aggregation, and deterministic ordering.
package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/3leaps/jobscope/pkg/jobs"
	"github.com/3leaps/jobscope/pkg/provider"
)

// ErrInvalidCriteria indicates contradictory or malformed filter input.
// It is surfaced before any backend call is attempted.
var ErrInvalidCriteria = errors.New("invalid query criteria")

// StatusWildcard bypasses status filtering entirely.
const StatusWildcard = "*"

// Query is the backend-agnostic filter input for one status query.
// All fields are optional; absence means no restriction.
type Query struct {
	// Statuses restricts to these derived statuses. The wildcard "*"
	// (alone or among values) disables status filtering.
	Statuses []string

	// JobIDs restricts to these job ids. Duplicates are tolerated and
	// never duplicate results.
	JobIDs []string

	// Names restricts to these job names.
	Names []string

	// Labels requires all pairs to match (AND semantics).
	Labels map[string]string

	// Age keeps only jobs created within the last Age. Zero means
	// unbounded.
	Age time.Duration

	// Full requests verbose output (provider attributes, raw event
	// detail). It does not affect which jobs match.
	Full bool

	// AllProvidersRequired makes any backend failure fail the whole
	// query instead of producing a partial result.
	AllProvidersRequired bool
}

// Validate checks the query before any backend is contacted.
func (q *Query) Validate() error {
	if q.Age < 0 {
		return fmt.Errorf("%w: age must not be negative", ErrInvalidCriteria)
	}
	for _, s := range q.Statuses {
		if s == StatusWildcard {
			continue
		}
		if _, ok := jobs.ParseStatus(s); !ok {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidCriteria, s)
		}
	}
	for k := range q.Labels {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: label key must not be empty", ErrInvalidCriteria)
		}
	}
	return nil
}

// statuses resolves the requested status set; nil means unrestricted
// (either nothing requested or the wildcard present).
func (q *Query) statuses() []jobs.Status {
	if len(q.Statuses) == 0 {
		return nil
	}
	out := make([]jobs.Status, 0, len(q.Statuses))
	for _, s := range q.Statuses {
		if s == StatusWildcard {
			return nil
		}
		if parsed, ok := jobs.ParseStatus(s); ok {
			out = append(out, parsed)
		}
	}
	return out
}

// criteria converts the query into adapter criteria, dropping
// duplicates and resolving the age window against now.
func (q *Query) criteria(now time.Time) provider.Criteria {
	c := provider.Criteria{
		JobIDs:   dedupe(q.JobIDs),
		Names:    dedupe(q.Names),
		Labels:   q.Labels,
		Statuses: q.statuses(),
	}
	if q.Age > 0 {
		c.CreatedAfter = now.Add(-q.Age)
	}
	return c
}

// matchesIdentity applies the per-job identity dimensions: ids, names,
// and labels. These are stable across the task-level rows of one job,
// so the engine may apply them before rows are merged.
func matchesIdentity(j jobs.Job, c provider.Criteria) bool {
	if len(c.JobIDs) > 0 && !contains(c.JobIDs, j.JobID) {
		return false
	}
	if len(c.Names) > 0 && !contains(c.Names, j.Name) {
		return false
	}
	return j.HasLabels(c.Labels)
}

// matchesStatus evaluates the status set against the current derived
// status. It must only run on merged jobs: filtering task-level rows
// by status would strip sibling tasks and corrupt the derivation.
func matchesStatus(j jobs.Job, statuses []jobs.Status) bool {
	if len(statuses) == 0 {
		return true
	}
	status := j.Status()
	for _, want := range statuses {
		if status == want {
			return true
		}
	}
	return false
}

// withinWindow applies the creation-time window. A merged job with no
// known create time (every row degraded) is kept: an unknown age is
// surfaced through the UNKNOWN status, not silently excluded.
func withinWindow(j jobs.Job, c provider.Criteria) bool {
	if j.CreateTime.IsZero() {
		return true
	}
	if !c.CreatedAfter.IsZero() && !j.CreateTime.After(c.CreatedAfter) {
		return false
	}
	if !c.CreatedBefore.IsZero() && !j.CreateTime.Before(c.CreatedBefore) {
		return false
	}
	return true
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func contains(values []string, v string) bool {
	for _, have := range values {
		if have == v {
			return true
		}
	}
	return false
}

// ParseAge parses an age threshold like "30s", "5m", "2h", or "3d".
// The "d" suffix means 24-hour days; everything else follows
// time.ParseDuration. Errors wrap ErrInvalidCriteria.
func ParseAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.ParseFloat(strings.TrimSuffix(s, "d"), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: unparseable age %q", ErrInvalidCriteria, s)
		}
		if days < 0 {
			return 0, fmt.Errorf("%w: age must not be negative", ErrInvalidCriteria)
		}
		return time.Duration(days * 24 * float64(time.Hour)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: unparseable age %q", ErrInvalidCriteria, s)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: age must not be negative", ErrInvalidCriteria)
	}
	return d, nil
}
