package executor

import (
	"fmt"
	"net/http"
)

// APIError is returned when the remote service answers with a non-200 status
type APIError struct {
	StatusCode int    `json:"code"`
	Message    string `json:"message"`
}

// NewAPIError builds an APIError from a status code
func NewAPIError(status int) *APIError {
	return &APIError{StatusCode: status, Message: http.StatusText(status)}
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status code: %d", e.StatusCode)
	}
	return fmt.Sprintf("status code: %d %s", e.StatusCode, e.Message)
}
