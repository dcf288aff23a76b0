package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/jobscope/internal/errors"
)

type stubChecker struct {
	err error
}

func (s stubChecker) CheckHealth(context.Context) error { return s.err }

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		manager := NewHealthManager("1.2.3")
		manager.RegisterChecker("local", stubChecker{})

		rec := httptest.NewRecorder()
		manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "1.2.3", resp.Version)
		assert.Equal(t, "healthy", resp.Checks["local"])
	})

	t.Run("unhealthy check yields 503 with detail", func(t *testing.T) {
		manager := NewHealthManager("1.2.3")
		manager.RegisterChecker("queue", stubChecker{err: errors.New("connection refused")})

		rec := httptest.NewRecorder()
		manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp apperrors.HTTPErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)
		assert.Equal(t, "connection refused", resp.Error.Details["queue"])
	})

	t.Run("no checkers is healthy", func(t *testing.T) {
		manager := NewHealthManager("dev")

		rec := httptest.NewRecorder()
		manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestLivenessHandler(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("queue", stubChecker{err: errors.New("down")})

	rec := httptest.NewRecorder()
	manager.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz/live", nil))

	// Liveness ignores backend health.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}

func TestVersionHandler(t *testing.T) {
	h := NewVersionHandler(VersionInfo{Version: "0.3.0", Commit: "abc123", BuildDate: "2026-03-14"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var info VersionInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
	assert.Equal(t, "0.3.0", info.Version)
	assert.Equal(t, "abc123", info.Commit)
}
