package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is returned when an authenticated call gets a 401.
	// The visitor has already been logged out when it is returned.
	ErrUnauthorized = errors.New("remote: unauthorized")
	ErrNoToken      = errors.New("remote: empty token in login response")
)

// APIError is a non-2xx answer of the remote API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: http %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, e.Body)
}

// StatusCode extracts the remote status from err, 0 if err is not an *APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
