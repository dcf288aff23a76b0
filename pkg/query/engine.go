package query

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/jobscope/pkg/jobs"
	"github.com/3leaps/jobscope/pkg/provider"
)

// DefaultProviderTimeout bounds each adapter call when the engine is
// not configured otherwise.
const DefaultProviderTimeout = 30 * time.Second

// BackendFailure records one backend that could not serve the query.
type BackendFailure struct {
	Provider provider.Type
	Err      error
}

// Result is the outcome of one query: the matched jobs in render order
// plus every backend that failed. Zero matches with zero failures is a
// successful empty result, never an error.
type Result struct {
	Jobs     []jobs.Job
	Failures []BackendFailure
}

// Partial reports whether some backends failed while others answered.
func (r *Result) Partial() bool {
	return len(r.Failures) > 0
}

// Engine runs status queries against a set of configured providers.
//
// Each query executes in an isolated, short-lived context; the engine
// holds no mutable state across queries beyond the provider set, so a
// single Engine serves concurrent callers.
type Engine struct {
	providers []provider.Provider
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the per-provider call timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the engine clock. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an engine over the given providers.
func New(providers []provider.Provider, opts ...Option) *Engine {
	e := &Engine{
		providers: providers,
		timeout:   DefaultProviderTimeout,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// providerResult carries one adapter's answer over the collection
// channel.
type providerResult struct {
	ptype provider.Type
	jobs  []jobs.Job
	err   error
}

// Run executes one query.
//
// Providers are queried concurrently; the engine buffers every answer,
// post-filters, deduplicates, aggregates multi-task jobs, and sorts
// before returning - order depends on the full set, so nothing streams.
// Backend failures land in Result.Failures unless AllProvidersRequired
// is set, in which case the first failure fails the query.
func (e *Engine) Run(ctx context.Context, q Query) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if len(e.providers) == 0 {
		return &Result{}, nil
	}

	criteria := q.criteria(e.now())

	results := make(chan providerResult, len(e.providers))
	for _, p := range e.providers {
		go func(p provider.Provider) {
			results <- e.queryProvider(ctx, p, criteria)
		}(p)
	}

	var collected []jobs.Job
	var failures []BackendFailure
	for range e.providers {
		res := <-results
		if res.err != nil {
			e.logger.Warn("backend query failed",
				zap.String("provider", res.ptype.String()),
				zap.Error(res.err))
			failures = append(failures, BackendFailure{Provider: res.ptype, Err: res.err})
			continue
		}
		collected = append(collected, res.jobs...)
	}

	if q.AllProvidersRequired && len(failures) > 0 {
		return nil, fmt.Errorf("backend %s failed: %w", failures[0].Provider, failures[0].Err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Identity dimensions were applied per provider before collection.
	// Status and the age window wait until rows are merged: the derived
	// status only exists on the whole job, and a degraded row may carry
	// no create time until a sibling row supplies one.
	merged := jobs.Aggregate(collected)
	kept := merged[:0]
	for _, j := range merged {
		if matchesStatus(j, criteria.Statuses) && withinWindow(j, criteria) {
			kept = append(kept, j)
		}
	}
	merged = kept

	jobs.Sort(merged)

	e.logger.Debug("query complete",
		zap.Int("matched", len(merged)),
		zap.Int("failed_backends", len(failures)))

	return &Result{Jobs: merged, Failures: failures}, nil
}

// queryProvider runs one adapter call under its own timeout context.
func (e *Engine) queryProvider(ctx context.Context, p provider.Provider, c provider.Criteria) providerResult {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// When the query is a pure id lookup, use the cheaper describe
	// path; otherwise list with whatever the backend filters natively.
	var (
		rows []jobs.Job
		err  error
	)
	if idOnly(c) {
		rows, err = p.Describe(callCtx, c.JobIDs)
	} else {
		rows, err = p.List(callCtx, c)
	}
	if err != nil {
		// A timed-out backend is a failed backend, not a partial result.
		if callCtx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", provider.ErrBackendUnavailable, err)
		}
		return providerResult{ptype: p.Type(), err: err}
	}
	return providerResult{ptype: p.Type(), jobs: residualFilter(rows, c, p.Capabilities())}
}

// residualFilter re-applies the identity dimensions the adapter does
// not filter natively, per its Capabilities declaration. Status and the
// creation window are always deferred to the post-aggregation pass.
func residualFilter(rows []jobs.Job, c provider.Criteria, caps provider.Capabilities) []jobs.Job {
	residual := provider.Criteria{JobIDs: c.JobIDs, Names: c.Names, Labels: c.Labels}
	if caps.JobIDs {
		residual.JobIDs = nil
	}
	if caps.Names {
		residual.Names = nil
	}
	if caps.Labels {
		residual.Labels = nil
	}
	if residual.Empty() {
		return rows
	}

	// Adapters may return an internal slice; never filter it in place.
	out := make([]jobs.Job, 0, len(rows))
	for _, j := range rows {
		if matchesIdentity(j, residual) {
			out = append(out, j)
		}
	}
	return out
}

// idOnly reports whether job ids are the only restriction.
func idOnly(c provider.Criteria) bool {
	return len(c.JobIDs) > 0 && len(c.Names) == 0 && len(c.Labels) == 0 &&
		len(c.Statuses) == 0 && c.CreatedAfter.IsZero() && c.CreatedBefore.IsZero()
}
