package errors

import (
	"encoding/json"
	"net/http"
	"time"
)

// HTTPHandler maps application errors onto HTTP responses at the boundary.
type HTTPHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewHTTPHandler(logger Logger) *HTTPHandler {
	return &HTTPHandler{logger: logger}
}

// HTTPStatus maps an error code to its HTTP status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeUnauthorized:
		return http.StatusForbidden
	case ErrCodeNotFound, ErrCodeFormNotFound:
		return http.StatusNotFound
	case ErrCodeConnectionExpired:
		return http.StatusGone
	case ErrCodeCodeMismatch:
		return http.StatusConflict
	case ErrCodeMissingField, ErrCodeInvalidStructure:
		return http.StatusBadRequest
	case ErrCodeValidationIncidents:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Message   string                 `json:"message"`
	Code      string                 `json:"code"`
	Details   string                 `json:"details,omitempty"`
	Incidents interface{}            `json:"incidents,omitempty"`
	Extra     map[string]interface{} `json:"metadata,omitempty"`
}

// Write normalizes err to a StandardError and writes the JSON error body.
// Unexpected errors become a generic 500; the cause is logged, not returned.
func (h *HTTPHandler) Write(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := h.normalizeError(err)
	status := HTTPStatus(stdErr.Code)

	body := errorBody{
		Message: stdErr.Message,
		Code:    string(stdErr.Code),
		Extra:   stdErr.Metadata,
	}
	if status != http.StatusInternalServerError {
		body.Details = stdErr.Details
	}
	// Coercion incidents are part of the wire contract, not metadata.
	if stdErr.Code == ErrCodeValidationIncidents {
		if incidents, ok := stdErr.Metadata["incidents"]; ok {
			body.Incidents = incidents
			body.Extra = nil
		}
	}

	fields := map[string]interface{}{
		"path":    r.URL.Path,
		"method":  r.Method,
		"code":    string(stdErr.Code),
		"status":  status,
		"details": stdErr.Details,
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields)
	} else {
		h.logger.Warn("request rejected", fields)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// normalizeError ensures we always have a StandardError
func (h *HTTPHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Internal error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
