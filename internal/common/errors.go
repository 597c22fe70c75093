// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	ErrNoRecords     = errors.New("no sales records")
	ErrExportFailed  = errors.New("export failed")
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError carries a message meant for the person at the terminal, and
// optionally what they can do about it.
type UserError struct {
	Err     error
	Message string
	Hint    string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError wraps err with a message for the user.
func NewUserError(message string, err error) error {
	return &UserError{Message: message, Err: err}
}

// NewUserErrorWithHint is NewUserError plus a suggested next step.
func NewUserErrorWithHint(message, hint string, err error) error {
	return &UserError{Message: message, Hint: hint, Err: err}
}

// Describe splits err into what to show the user. For a UserError anywhere in
// the chain that is its message and hint; otherwise the error text itself.
func Describe(err error) (message, hint string) {
	if err == nil {
		return "", ""
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message, ue.Hint
	}
	return err.Error(), ""
}
