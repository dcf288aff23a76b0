package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/3leaps/jobscope/internal/errors"
	"github.com/3leaps/jobscope/internal/observability"
	"github.com/3leaps/jobscope/pkg/output"
	"github.com/3leaps/jobscope/pkg/query"
)

// JobsResponse is the body returned by GET /v1/jobs.
type JobsResponse struct {
	Jobs     []output.JobView   `json:"jobs"`
	Failures []output.ErrorView `json:"failures,omitempty"`
	Summary  output.SummaryView `json:"summary"`
}

// JobsHandler serves job status queries over HTTP. Query parameters
// mirror the status command's flags:
//
//	jobs=<id>          repeatable or comma-separated
//	names=<name>       repeatable or comma-separated
//	label=<key>=<val>  repeatable
//	status=<status>    repeatable; "*" disables status filtering
//	age=<duration>     e.g. 3h, 2d
//	full=true          verbose event and task detail
//	all_providers_required=true
type JobsHandler struct {
	engine   *query.Engine
	backends int
}

// NewJobsHandler creates the handler over a configured engine.
// backendCount is the number of providers the engine fans out to,
// reported in the response summary.
func NewJobsHandler(engine *query.Engine, backendCount int) *JobsHandler {
	return &JobsHandler{engine: engine, backends: backendCount}
}

func (h *JobsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q, err := parseJobsQuery(r)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}

	result, err := h.engine.Run(r.Context(), *q)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}

	resp := JobsResponse{
		Jobs: make([]output.JobView, 0, len(result.Jobs)),
		Summary: output.SummaryView{
			Matched:  len(result.Jobs),
			Backends: h.backends,
		},
	}
	for _, j := range result.Jobs {
		resp.Jobs = append(resp.Jobs, output.NewJobView(j, q.Full))
	}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, output.ErrorView{
			Provider: f.Provider.String(),
			Message:  f.Err.Error(),
		})
		resp.Summary.FailedBackends = append(resp.Summary.FailedBackends, f.Provider.String())
	}

	// A partial result is still a result: the body carries everything
	// found plus the failed backends, but the status code signals that
	// the answer may be incomplete.
	status := http.StatusOK
	if result.Partial() {
		status = http.StatusBadGateway
		observability.CLILogger.Warn("Partial job query result",
			zap.Int("matched", len(result.Jobs)),
			zap.Strings("failed_backends", resp.Summary.FailedBackends),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func parseJobsQuery(r *http.Request) (*query.Query, error) {
	params := r.URL.Query()
	q := &query.Query{
		JobIDs:   splitMulti(params["jobs"]),
		Names:    splitMulti(params["names"]),
		Statuses: splitMulti(params["status"]),
	}

	for _, pair := range params["label"] {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: label must be key=value, got %q", query.ErrInvalidCriteria, pair)
		}
		if q.Labels == nil {
			q.Labels = make(map[string]string)
		}
		q.Labels[key] = value
	}

	if raw := params.Get("age"); raw != "" {
		age, err := query.ParseAge(raw)
		if err != nil {
			return nil, err
		}
		q.Age = age
	}

	if raw := params.Get("full"); raw != "" {
		full, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: full must be a boolean, got %q", query.ErrInvalidCriteria, raw)
		}
		q.Full = full
	}

	if raw := params.Get("all_providers_required"); raw != "" {
		required, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: all_providers_required must be a boolean, got %q", query.ErrInvalidCriteria, raw)
		}
		q.AllProvidersRequired = required
	}

	return q, nil
}

// splitMulti accepts both repeated parameters and comma-separated
// values inside one parameter.
func splitMulti(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
