package backend

import (
	"errors"
	"fmt"
)

// NetworkError indicates the request never produced an HTTP response:
// connection refused, DNS failure, timeout, canceled context.
//
// Check with errors.As:
//
//	var netErr *backend.NetworkError
//	if errors.As(err, &netErr) { ... }
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("backend unreachable (%s): %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError indicates the backend answered with a non-2xx status. Detail
// carries the server-supplied detail message when one was decodable,
// otherwise the HTTP status text.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error (HTTP %d): %s", e.StatusCode, e.Detail)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}
