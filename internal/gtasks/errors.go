package gtasks

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// ErrTaskNotFound marks a 404-class answer from the Google Tasks API for a
// task or list lookup.
var ErrTaskNotFound = errors.New("gtasks.task_not_found")

// APIError wraps a non-success Google Tasks API response. The upstream
// status and body are never swallowed; route handlers relay them.
type APIError struct {
	StatusCode int
	Body       string
}

// Error formats the upstream status and body text.
func (apiErr *APIError) Error() string {
	return fmt.Sprintf("Google Tasks API error: %d %s", apiErr.StatusCode, apiErr.Body)
}

// wrapGoogleError converts googleapi failures into APIError, tagging
// 404-class responses with ErrTaskNotFound.
func wrapGoogleError(operation string, callErr error) error {
	var googleErr *googleapi.Error
	if errors.As(callErr, &googleErr) {
		apiErr := &APIError{StatusCode: googleErr.Code, Body: googleErr.Body}
		if googleErr.Code == http.StatusNotFound {
			return fmt.Errorf("%s: %w: %w", operation, ErrTaskNotFound, apiErr)
		}
		return fmt.Errorf("%s: %w", operation, apiErr)
	}
	return fmt.Errorf("%s: %w", operation, callErr)
}
