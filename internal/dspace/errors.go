package dspace

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the repository client.
var (
	// ErrUnauthorized indicates missing or rejected credentials.
	ErrUnauthorized = errors.New("dspace authentication error")

	// ErrNotFound indicates the requested object does not exist.
	ErrNotFound = errors.New("not found in dspace")

	// ErrInvalidResponse indicates a response body that could not be used.
	ErrInvalidResponse = errors.New("invalid response from dspace")
)

// maxErrorBody bounds the diagnostic payload kept in a RequestError.
const maxErrorBody = 512

// RequestError reports a response whose status differs from the one the
// operation expects.
type RequestError struct {
	Op       string
	Method   string
	URL      string
	Expected int
	Actual   int
	Body     string
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("dspace %s: %s %s: expected status %d, got %d", e.Op, e.Method, e.URL, e.Expected, e.Actual)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap maps well-known statuses to the package sentinels.
func (e *RequestError) Unwrap() error {
	switch e.Actual {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

func newRequestError(op string, req *http.Request, expected, actual int, body []byte) *RequestError {
	b := string(body)
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody] + "..."
	}
	return &RequestError{
		Op:       op,
		Method:   req.Method,
		URL:      req.URL.String(),
		Expected: expected,
		Actual:   actual,
		Body:     b,
	}
}

// IsRequestError reports whether err carries an unexpected response status.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsNotFound reports whether err indicates a missing object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
