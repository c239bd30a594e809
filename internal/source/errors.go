package source

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the source client.
var (
	// ErrNotFound indicates the source has no such page or resource.
	ErrNotFound = errors.New("not found in source")

	// ErrInvalidResponse indicates a body that could not be decoded.
	ErrInvalidResponse = errors.New("invalid response from source")

	// ErrMalformed indicates a node whose content breaks a structural
	// assumption (an edition title without a year, a conference title
	// without an acronym...).
	ErrMalformed = errors.New("malformed source node")
)

// FetchError is a failed read of a source URL.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates a missing source resource.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsFetchError reports whether err comes from reading the source.
func IsFetchError(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr)
}
