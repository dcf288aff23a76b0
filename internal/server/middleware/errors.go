package middleware

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/3leaps/jobscope/internal/errors"
	"github.com/3leaps/jobscope/internal/observability"
)

// Recovery converts handler panics into a 500 error envelope so a bad
// backend payload can never take the whole server down.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			requestID := GetRequestID(r.Context())
			observability.CLILogger.Error("Recovered from handler panic",
				zap.Any("panic", rec),
				zap.String("path", r.URL.Path),
				zap.String("request_id", requestID),
			)
			writeEnvelope(w, http.StatusInternalServerError, apperrors.HTTPError{
				Code:      apperrors.CodeInternal,
				Message:   fmt.Sprintf("panic: %v", rec),
				RequestID: requestID,
			})
		}()
		next.ServeHTTP(w, r)
	})
}

// NotFound is the router's 404 handler.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusNotFound, apperrors.HTTPError{
		Code:      apperrors.CodeNotFound,
		Message:   fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path),
		RequestID: GetRequestID(r.Context()),
	})
}

// MethodNotAllowed is the router's 405 handler.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusMethodNotAllowed, apperrors.HTTPError{
		Code:      apperrors.CodeMethodNotAllowed,
		Message:   fmt.Sprintf("method %s not allowed for %s", r.Method, r.URL.Path),
		RequestID: GetRequestID(r.Context()),
	})
}

func writeEnvelope(w http.ResponseWriter, status int, e apperrors.HTTPError) {
	apperrors.WriteError(w, status, e)
}
