package handle

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication indicates the server rejected the admin key.
	ErrAuthentication = errors.New("handle server authentication failed")

	// ErrInvalidKey indicates an unusable admin private key.
	ErrInvalidKey = errors.New("invalid handle admin key")

	// ErrUnexpectedResponse indicates a status or response code the
	// operation does not expect.
	ErrUnexpectedResponse = errors.New("unexpected handle server response")
)

// RegistrationError reports a failure to create or update a handle.
type RegistrationError struct {
	Handle string
	Err    error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registering handle %s: %v", e.Handle, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// IsRegistrationError reports whether err is a handle registration failure.
func IsRegistrationError(err error) bool {
	var re *RegistrationError
	return errors.As(err, &re)
}
