// Package errors maps jobscope errors onto the HTTP error envelope
// used by every server endpoint.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/3leaps/jobscope/pkg/provider"
	"github.com/3leaps/jobscope/pkg/query"
)

// Standard error codes carried in the envelope.
const (
	CodeInvalidCriteria    = "INVALID_CRITERIA"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodeBackendAuth        = "BACKEND_AUTH_ERROR"
	CodeBackendRejected    = "BACKEND_REJECTED"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeInternal           = "INTERNAL_ERROR"
)

// HTTPErrorResponse is the JSON envelope for all error responses.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// HTTPError is the error payload inside the envelope.
type HTTPError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// WriteError writes the envelope with the given status code.
func WriteError(w http.ResponseWriter, status int, e HTTPError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{Error: e})
}

// RespondWithError classifies err against the jobscope error taxonomy
// and writes the matching envelope.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Classify(err)
	WriteError(w, status, HTTPError{Code: code, Message: err.Error()})
}

// Classify maps an error to an HTTP status and envelope code.
func Classify(err error) (int, string) {
	switch {
	case stderrors.Is(err, query.ErrInvalidCriteria):
		return http.StatusBadRequest, CodeInvalidCriteria
	case provider.IsAuth(err):
		return http.StatusBadGateway, CodeBackendAuth
	case provider.IsRejected(err):
		return http.StatusBadGateway, CodeBackendRejected
	case provider.IsUnavailable(err), provider.IsThrottled(err):
		return http.StatusBadGateway, CodeBackendUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
