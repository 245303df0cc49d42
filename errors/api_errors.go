package errors

import (
	"fmt"
	"net/http"
)

// APIError is the JSON error body returned by every handler.
type APIError struct {
	Message string `json:"error"`
	Details string `json:"details,omitempty"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Message, e.Details)
	}

	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// WithDetails returns a copy of the error carrying details.
func (e *APIError) WithDetails(details string) *APIError {
	cp := *e
	cp.Details = details

	return &cp
}

func New(status int, message string) *APIError {
	return &APIError{Status: status, Message: message}
}

func BadRequest(message string) *APIError {
	return New(http.StatusBadRequest, message)
}

func Unauthorized() *APIError {
	return New(http.StatusUnauthorized, "Unauthorized")
}

func NotFound(message string) *APIError {
	return New(http.StatusNotFound, message)
}

func TooManyRequests() *APIError {
	return New(http.StatusTooManyRequests, "Too many requests, please try again later.")
}

func Internal(message string) *APIError {
	return New(http.StatusInternalServerError, message)
}

// Upstream reports a failed call to Webflow or Stripe. The upstream status is
// kept when it is a client error the caller can act on, otherwise 500.
func Upstream(message string, upstreamStatus int, details string) *APIError {
	status := http.StatusInternalServerError
	if upstreamStatus >= 400 && upstreamStatus < 500 {
		status = upstreamStatus
	}

	return &APIError{Status: status, Message: message, Details: details}
}
