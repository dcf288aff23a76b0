package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/jobscope/pkg/provider"
	"github.com/3leaps/jobscope/pkg/query"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid criteria",
			err:        fmt.Errorf("%w: unknown status", query.ErrInvalidCriteria),
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidCriteria,
		},
		{
			name:       "auth error",
			err:        &provider.BackendError{Op: "list", Provider: "pipelines", Err: provider.ErrAuth},
			wantStatus: http.StatusBadGateway,
			wantCode:   CodeBackendAuth,
		},
		{
			name:       "rejected",
			err:        &provider.BackendError{Op: "list", Provider: "pipelines", Err: provider.ErrRejected},
			wantStatus: http.StatusBadGateway,
			wantCode:   CodeBackendRejected,
		},
		{
			name:       "unavailable",
			err:        &provider.BackendError{Op: "list", Provider: "queue", Err: provider.ErrBackendUnavailable},
			wantStatus: http.StatusBadGateway,
			wantCode:   CodeBackendUnavailable,
		},
		{
			name:       "throttled maps to unavailable",
			err:        &provider.BackendError{Op: "list", Provider: "pipelines", Err: provider.ErrThrottled},
			wantStatus: http.StatusBadGateway,
			wantCode:   CodeBackendUnavailable,
		},
		{
			name:       "anything else is internal",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := Classify(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestRespondWithError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)

	RespondWithError(rec, req, fmt.Errorf("%w: age must not be negative", query.ErrInvalidCriteria))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeInvalidCriteria, body.Error.Code)
	assert.Contains(t, body.Error.Message, "age must not be negative")
}
