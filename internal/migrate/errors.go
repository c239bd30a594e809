package migrate

import (
	"errors"
	"fmt"
)

// Stage names the step a migration failed in.
type Stage string

const (
	StageSetup    Stage = "setup"
	StageSource   Stage = "source"
	StageFind     Stage = "find"
	StageCreate   Stage = "create"
	StageRegister Stage = "register"
	StageAuthor   Stage = "author"
	StageFile     Stage = "file"
)

// ErrInteractiveUnavailable is returned when an interactive run has no
// disambiguator to ask.
var ErrInteractiveUnavailable = errors.New("interactive mode requires a disambiguator")

// Error aborts a run. Identifier is the sistedes identifier being
// processed, when there is one.
type Error struct {
	Stage      Stage
	Identifier string
	Err        error
}

func (e *Error) Error() string {
	if e.Identifier == "" {
		return fmt.Sprintf("migration %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("migration %s of %s: %v", e.Stage, e.Identifier, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsMigrationError reports whether err is or wraps an *Error.
func IsMigrationError(err error) bool {
	var me *Error
	return errors.As(err, &me)
}

func fail(stage Stage, identifier string, err error) error {
	var me *Error
	if errors.As(err, &me) {
		return err
	}
	return &Error{Stage: stage, Identifier: identifier, Err: err}
}
