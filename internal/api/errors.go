package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hit-tracker/hdm/internal/adapter"
	"github.com/hit-tracker/hdm/internal/fleet"
	"github.com/hit-tracker/hdm/internal/protocol"
	"github.com/hit-tracker/hdm/internal/session"
)

// APIError represents an API-layer error with HTTP status code.
type APIError struct {
	Code       string
	Message    string
	Details    interface{}
	StatusCode int
}

// NewAPIError creates a new API error.
func NewAPIError(code string, message string, statusCode int, details interface{}) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
	}
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// errorMapping is one row of the error table. Rows are tried in order.
type errorMapping struct {
	target  error
	code    string
	status  int
	message string
}

var errorTable = []errorMapping{
	{fleet.ErrNotFound, "NOT_FOUND", http.StatusNotFound, "Unit not found"},
	{fleet.ErrInvalidConfig, "BAD_REQUEST", http.StatusBadRequest, "Invalid game configuration"},
	{protocol.ErrInvalidGameStatus, "INVALID_RANGE", http.StatusBadRequest, "Game status must be 0 or 1"},
	{protocol.ErrInvalidZone, "INVALID_RANGE", http.StatusBadRequest, "Invalid zone configuration"},
	{protocol.ErrInvalidPattern, "INVALID_RANGE", http.StatusBadRequest, "Invalid LED pattern"},
	{protocol.ErrInvalidGameType, "INVALID_RANGE", http.StatusBadRequest, "Invalid game type"},
	{adapter.ErrBusy, "BUSY", http.StatusServiceUnavailable, "Radio is busy, retry with backoff"},
	{adapter.ErrUnavailable, "UNAVAILABLE", http.StatusServiceUnavailable, "Unit is unavailable"},
	{session.ErrNotReady, "UNAVAILABLE", http.StatusServiceUnavailable, "Unit is unavailable"},
	{adapter.ErrTimeout, "TIMEOUT", http.StatusGatewayTimeout, "Unit did not respond in time"},
	{adapter.ErrNotFound, "RADIO_NOT_FOUND", http.StatusBadGateway, "Unit does not expose the game service"},
	{adapter.ErrInternal, "INTERNAL", http.StatusInternalServerError, "Internal server error"},
}

// ToAPIError converts an error to an HTTP status code and JSON body.
func ToAPIError(err error) (int, []byte) {
	if err == nil {
		return http.StatusOK, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, marshalErrorResponse(apiErr.Code, apiErr.Message, apiErr.Details)
	}

	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m.status, marshalErrorResponse(m.code, m.message, map[string]interface{}{
				"original": err.Error(),
			})
		}
	}

	return http.StatusInternalServerError, marshalErrorResponse("INTERNAL", "Internal server error", map[string]interface{}{
		"original": err.Error(),
	})
}

// marshalErrorResponse creates a JSON error response with correlation ID.
func marshalErrorResponse(code, message string, details interface{}) []byte {
	body, err := json.Marshal(ErrorResponse(code, message, details))
	if err != nil {
		body, _ = json.Marshal(ErrorResponse("INTERNAL", "Failed to marshal error response", nil))
	}
	return body
}
