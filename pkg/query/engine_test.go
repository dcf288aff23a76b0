package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/jobscope/pkg/jobs"
	"github.com/3leaps/jobscope/pkg/provider"
)

// fakeProvider is an in-memory adapter for engine tests. It applies no
// criteria natively, mimicking a backend with no server-side filtering.
type fakeProvider struct {
	ptype     provider.Type
	jobs      []jobs.Job
	err       error
	delay     time.Duration
	listCalls int
	descCalls int
}

func (f *fakeProvider) Type() provider.Type { return f.ptype }

func (f *fakeProvider) List(ctx context.Context, _ provider.Criteria) ([]jobs.Job, error) {
	f.listCalls++
	return f.respond(ctx)
}

func (f *fakeProvider) Describe(ctx context.Context, ids []string) ([]jobs.Job, error) {
	f.descCalls++
	rows, err := f.respond(ctx)
	if err != nil {
		return nil, err
	}
	var out []jobs.Job
	for _, j := range rows {
		for _, id := range ids {
			if j.JobID == id {
				out = append(out, j)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeProvider) respond(ctx context.Context) ([]jobs.Job, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.jobs, nil
}

func (f *fakeProvider) Capabilities() provider.Capabilities { return provider.Capabilities{} }
func (f *fakeProvider) Close() error                        { return nil }

// nativeFakeProvider declares criteria dimensions as natively filtered,
// mimicking a backend that prunes server-side.
type nativeFakeProvider struct {
	fakeProvider
	caps provider.Capabilities
}

func (f *nativeFakeProvider) Capabilities() provider.Capabilities { return f.caps }

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func runningJob(id, name string, created time.Time, labels map[string]string) jobs.Job {
	return jobs.Job{
		JobID: id, Name: name, CreateTime: created, Labels: labels, Provider: "local",
		Tasks: []jobs.Task{{Events: []jobs.Event{
			{Name: jobs.EventStart, Time: created.Add(time.Second)},
			{Name: jobs.EventRunning, Time: created.Add(2 * time.Second)},
		}}},
	}
}

func completedJob(id, name string, created time.Time, labels map[string]string) jobs.Job {
	var evs []jobs.Event
	for i, n := range []string{
		jobs.EventStart, jobs.EventPullingImage, jobs.EventLocalizing,
		jobs.EventRunning, jobs.EventDelocalizing, jobs.EventOK,
	} {
		evs = append(evs, jobs.Event{Name: n, Time: created.Add(time.Duration(i+1) * time.Second)})
	}
	return jobs.Job{
		JobID: id, Name: name, CreateTime: created, Labels: labels, Provider: "local",
		Tasks: []jobs.Task{{Events: evs}},
	}
}

// referenceFixture is the three-job scenario: A completed, B and C
// still running, submitted in that order.
func referenceFixture() *fakeProvider {
	labels := map[string]string{"batch": "demo"}
	return &fakeProvider{
		ptype: provider.TypeLocal,
		jobs: []jobs.Job{
			completedJob("job-a", "completed-job", testNow.Add(-3*time.Minute), labels),
			runningJob("job-b", "running-job", testNow.Add(-2*time.Minute), labels),
			runningJob("job-c", "running-job-2", testNow.Add(-time.Minute), labels),
		},
	}
}

func newTestEngine(providers ...provider.Provider) *Engine {
	return New(providers, WithClock(func() time.Time { return testNow }), WithTimeout(time.Second))
}

func TestRunOrdering(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(referenceFixture())

	t.Run("most recent first", func(t *testing.T) {
		res, err := e.Run(ctx, Query{})
		require.NoError(t, err)
		require.Len(t, res.Jobs, 3)
		assert.Equal(t, "job-c", res.Jobs[0].JobID)
		assert.Equal(t, "job-b", res.Jobs[1].JobID)
		assert.Equal(t, "job-a", res.Jobs[2].JobID)
	})

	t.Run("status set with ids", func(t *testing.T) {
		res, err := e.Run(ctx, Query{
			Statuses: []string{"RUNNING", "SUCCESS"},
			JobIDs:   []string{"job-c", "job-b", "job-a"},
		})
		require.NoError(t, err)
		require.Len(t, res.Jobs, 3)
		assert.Equal(t, "job-c", res.Jobs[0].JobID)
		assert.Equal(t, "job-b", res.Jobs[1].JobID)
		assert.Equal(t, "job-a", res.Jobs[2].JobID)

		// The completed job carries the full ordered timeline.
		a := res.Jobs[2]
		require.Len(t, a.Tasks, 1)
		names := make([]string, 0, len(a.Tasks[0].Events))
		for _, ev := range a.Tasks[0].Events {
			names = append(names, ev.Name)
		}
		assert.Equal(t, []string{
			jobs.EventStart, jobs.EventPullingImage, jobs.EventLocalizing,
			jobs.EventRunning, jobs.EventDelocalizing, jobs.EventOK,
		}, names)
	})

	t.Run("idempotent for a fixed snapshot", func(t *testing.T) {
		q := Query{Statuses: []string{"*"}}
		first, err := e.Run(ctx, q)
		require.NoError(t, err)
		second, err := e.Run(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, first.Jobs, second.Jobs)
	})
}

func TestRunFiltering(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(referenceFixture())

	t.Run("duplicate ids return each job once", func(t *testing.T) {
		res, err := e.Run(ctx, Query{JobIDs: []string{"job-a", "job-a", "job-a"}})
		require.NoError(t, err)
		assert.Len(t, res.Jobs, 1)
	})

	t.Run("query by name matches query by id", func(t *testing.T) {
		byName, err := e.Run(ctx, Query{Names: []string{"completed-job", "running-job", "running-job-2"}})
		require.NoError(t, err)
		byID, err := e.Run(ctx, Query{JobIDs: []string{"job-a", "job-b", "job-c"}})
		require.NoError(t, err)
		assert.Equal(t, byID.Jobs, byName.Jobs)
	})

	t.Run("label filter", func(t *testing.T) {
		res, err := e.Run(ctx, Query{Labels: map[string]string{"batch": "demo"}})
		require.NoError(t, err)
		assert.Len(t, res.Jobs, 3)

		res, err = e.Run(ctx, Query{Labels: map[string]string{"batch": "other"}})
		require.NoError(t, err)
		assert.Empty(t, res.Jobs)
	})

	t.Run("restrictive age excludes but does not delete", func(t *testing.T) {
		res, err := e.Run(ctx, Query{Age: 30 * time.Second})
		require.NoError(t, err)
		assert.Empty(t, res.Jobs)

		res, err = e.Run(ctx, Query{})
		require.NoError(t, err)
		assert.Len(t, res.Jobs, 3)
	})

	t.Run("wildcard bypasses status filtering", func(t *testing.T) {
		res, err := e.Run(ctx, Query{Statuses: []string{"*"}})
		require.NoError(t, err)
		assert.Len(t, res.Jobs, 3)
	})

	t.Run("status filter is restrictive", func(t *testing.T) {
		res, err := e.Run(ctx, Query{Statuses: []string{"SUCCESS"}})
		require.NoError(t, err)
		require.Len(t, res.Jobs, 1)
		assert.Equal(t, "job-a", res.Jobs[0].JobID)
	})

	t.Run("no match is empty, not an error", func(t *testing.T) {
		res, err := e.Run(ctx, Query{JobIDs: []string{"no-such-job"}})
		require.NoError(t, err)
		assert.Empty(t, res.Jobs)
		assert.False(t, res.Partial())
	})

	t.Run("invalid criteria never reaches a backend", func(t *testing.T) {
		failing := &fakeProvider{ptype: provider.TypeQueue, err: provider.ErrBackendUnavailable}
		isolated := newTestEngine(failing)

		_, err := isolated.Run(ctx, Query{Statuses: []string{"NOPE"}})
		assert.ErrorIs(t, err, ErrInvalidCriteria)
		assert.Zero(t, failing.listCalls)
		assert.Zero(t, failing.descCalls)
	})
}

func TestRunMultiProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("merges and orders across backends", func(t *testing.T) {
		localJobs := referenceFixture()
		cloud := &fakeProvider{
			ptype: provider.TypePipelines,
			jobs: []jobs.Job{
				completedJob("job-d", "cloud-job", testNow.Add(-90*time.Second), nil),
			},
		}
		e := newTestEngine(localJobs, cloud)

		res, err := e.Run(ctx, Query{})
		require.NoError(t, err)
		require.Len(t, res.Jobs, 4)
		// job-c (-1m), job-d (-90s), job-b (-2m), job-a (-3m)
		assert.Equal(t, []string{"job-c", "job-d", "job-b", "job-a"},
			[]string{res.Jobs[0].JobID, res.Jobs[1].JobID, res.Jobs[2].JobID, res.Jobs[3].JobID})
	})

	t.Run("task rows from one job merge into one record", func(t *testing.T) {
		created := testNow.Add(-time.Minute)
		rows := &fakeProvider{
			ptype: provider.TypePipelines,
			jobs: []jobs.Job{
				{JobID: "array-1", CreateTime: created, Tasks: []jobs.Task{{TaskID: "1", Events: []jobs.Event{{Name: jobs.EventStart, Time: created}, {Name: jobs.EventOK, Time: created.Add(time.Second)}}}}},
				{JobID: "array-1", CreateTime: created, Tasks: []jobs.Task{{TaskID: "2", Events: []jobs.Event{{Name: jobs.EventStart, Time: created}}}}},
			},
		}
		e := newTestEngine(rows)

		res, err := e.Run(ctx, Query{})
		require.NoError(t, err)
		require.Len(t, res.Jobs, 1)
		assert.Len(t, res.Jobs[0].Tasks, 2)
		assert.Equal(t, jobs.StatusRunning, res.Jobs[0].Status())
	})

	t.Run("status filter applies to the aggregated job", func(t *testing.T) {
		created := testNow.Add(-time.Minute)
		rows := &fakeProvider{
			ptype: provider.TypePipelines,
			jobs: []jobs.Job{
				{JobID: "array-1", CreateTime: created, Tasks: []jobs.Task{{TaskID: "1", Events: []jobs.Event{{Name: jobs.EventStart, Time: created}, {Name: jobs.EventOK, Time: created.Add(time.Second)}}}}},
				{JobID: "array-1", CreateTime: created, Tasks: []jobs.Task{{TaskID: "2", Events: []jobs.Event{{Name: jobs.EventStart, Time: created}}}}},
			},
		}
		e := newTestEngine(rows)

		// One task succeeded, one still running: the logical job is
		// RUNNING, so a SUCCESS-only filter excludes it.
		res, err := e.Run(ctx, Query{Statuses: []string{"SUCCESS"}})
		require.NoError(t, err)
		assert.Empty(t, res.Jobs)

		// A matching filter keeps the job whole: the succeeded sibling
		// task must not be stripped by the filter.
		res, err = e.Run(ctx, Query{Statuses: []string{"RUNNING"}})
		require.NoError(t, err)
		require.Len(t, res.Jobs, 1)
		assert.Len(t, res.Jobs[0].Tasks, 2)
	})

	t.Run("age filter keeps degraded rows without a create time", func(t *testing.T) {
		created := testNow.Add(-time.Minute)
		rows := &fakeProvider{
			ptype: provider.TypePipelines,
			jobs: []jobs.Job{
				{JobID: "array-2", CreateTime: created, Tasks: []jobs.Task{{TaskID: "1", Events: []jobs.Event{{Name: jobs.EventStart, Time: created}}}}},
				{JobID: "array-2", Tasks: []jobs.Task{{TaskID: "2", Degraded: true}}},
				{JobID: "garbled", Tasks: []jobs.Task{{TaskID: "1", Degraded: true}}},
			},
		}
		e := newTestEngine(rows)

		res, err := e.Run(ctx, Query{Age: time.Hour})
		require.NoError(t, err)
		require.Len(t, res.Jobs, 2)

		// The dated row supplies the create time; the degraded sibling
		// rides along instead of being dropped by the window.
		var merged jobs.Job
		for _, j := range res.Jobs {
			if j.JobID == "array-2" {
				merged = j
			}
		}
		assert.Len(t, merged.Tasks, 2)
	})

	t.Run("natively filtered dimensions are not re-checked", func(t *testing.T) {
		// The adapter claims name filtering is native, then returns a
		// row the engine's own name check would reject. The engine must
		// trust the declaration and keep the row.
		native := &nativeFakeProvider{
			fakeProvider: fakeProvider{
				ptype: provider.TypeQueue,
				jobs:  []jobs.Job{runningJob("job-q", "server-side-match", testNow.Add(-time.Minute), nil)},
			},
			caps: provider.Capabilities{Names: true},
		}
		e := newTestEngine(native)

		res, err := e.Run(ctx, Query{Names: []string{"some-other-name"}})
		require.NoError(t, err)
		assert.Len(t, res.Jobs, 1)
	})
}

func TestRunFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("one failed backend yields a partial result", func(t *testing.T) {
		healthy := referenceFixture()
		failing := &fakeProvider{ptype: provider.TypeQueue, err: &provider.BackendError{
			Op: "List", Provider: provider.TypeQueue, Err: provider.ErrBackendUnavailable,
		}}
		e := newTestEngine(healthy, failing)

		res, err := e.Run(ctx, Query{})
		require.NoError(t, err)
		assert.Len(t, res.Jobs, 3)
		require.True(t, res.Partial())
		require.Len(t, res.Failures, 1)
		assert.Equal(t, provider.TypeQueue, res.Failures[0].Provider)
		assert.True(t, provider.IsUnavailable(res.Failures[0].Err))
	})

	t.Run("all-providers-required fails the query", func(t *testing.T) {
		healthy := referenceFixture()
		failing := &fakeProvider{ptype: provider.TypeQueue, err: provider.ErrBackendUnavailable}
		e := newTestEngine(healthy, failing)

		_, err := e.Run(ctx, Query{AllProvidersRequired: true})
		assert.ErrorIs(t, err, provider.ErrBackendUnavailable)
	})

	t.Run("slow backend times out as a failed backend", func(t *testing.T) {
		slow := &fakeProvider{ptype: provider.TypePipelines, delay: 5 * time.Second}
		e := New([]provider.Provider{referenceFixture(), slow},
			WithClock(func() time.Time { return testNow }),
			WithTimeout(20*time.Millisecond))

		res, err := e.Run(ctx, Query{})
		require.NoError(t, err)
		assert.Len(t, res.Jobs, 3)
		require.Len(t, res.Failures, 1)
		assert.True(t, provider.IsUnavailable(res.Failures[0].Err))
	})

	t.Run("caller cancellation aborts the query", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		cancel()

		slow := &fakeProvider{ptype: provider.TypePipelines, delay: time.Second}
		e := newTestEngine(slow)

		_, err := e.Run(cancelCtx, Query{})
		assert.Error(t, err)
	})
}

func TestDescribeFastPath(t *testing.T) {
	ctx := context.Background()
	f := referenceFixture()
	e := newTestEngine(f)

	_, err := e.Run(ctx, Query{JobIDs: []string{"job-a"}})
	require.NoError(t, err)
	assert.Equal(t, 1, f.descCalls)
	assert.Zero(t, f.listCalls)

	_, err = e.Run(ctx, Query{JobIDs: []string{"job-a"}, Names: []string{"completed-job"}})
	require.NoError(t, err)
	assert.Equal(t, 1, f.listCalls)
}
