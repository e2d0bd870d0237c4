package keywrap

import (
	"errors"
	"fmt"
)

// Error kinds. Errors returned by this package match one of these through
// errors.Is, except failures passed through unchanged from AWS or the
// database driver.
var (
	// ErrInvalidInput covers empty key ids, empty or malformed payloads,
	// truncated archives and envelopes missing required fields.
	ErrInvalidInput = errors.New("keywrap: invalid input")

	// ErrFileAccess indicates a path could not be opened or created.
	ErrFileAccess = errors.New("keywrap: file access")

	// ErrIntegrity indicates a hash could not be computed or did not match.
	ErrIntegrity = errors.New("keywrap: integrity")

	// ErrUnsupported indicates an unimplemented provider, format version,
	// seal mode or bundling variant.
	ErrUnsupported = errors.New("keywrap: not supported")

	// ErrNotFound indicates no envelope record exists for a lookup key.
	ErrNotFound = errors.New("keywrap: not found")

	// ErrKeyInactive indicates a stored key is not in the active state or
	// has expired.
	ErrKeyInactive = errors.New("keywrap: key not active")

	// ErrAuthentication indicates AES-GCM tag verification failed.
	ErrAuthentication = fmt.Errorf("%w: message authentication failed", ErrIntegrity)
)

// InputError names the field or region of an input that was rejected.
type InputError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	msg := "keywrap: invalid " + e.Field + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports true for ErrInvalidInput so callers can match the kind.
func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

func (e *InputError) Unwrap() error { return e.Err }

func inputErr(field, reason string) error {
	return &InputError{Field: field, Reason: reason}
}

func inputErrf(field string, err error, format string, args ...any) error {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...), Err: err}
}
