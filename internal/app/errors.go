package app

import (
	"errors"
	"fmt"
)

// Workflow errors. Callers match them with errors.Is; everything except
// ErrStorageUnavailable is a caller error.
var (
	ErrSubjectNotFound        = errors.New("subject not found")
	ErrIllegalTransition      = errors.New("illegal status transition")
	ErrMissingRejectionReason = errors.New("a reason is required when rejecting")
	ErrStorageUnavailable     = errors.New("storage unavailable")
	ErrInvalidInput           = errors.New("invalid input")
	ErrAdminNotAuthorized     = errors.New("telegram user is not the configured superadmin")
)

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
