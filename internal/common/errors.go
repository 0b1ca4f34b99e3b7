// Package common defines shared constants and sentinel errors used across
// the account store, its document-store backends, and the admin CLI.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Account-level errors.
	ErrNotFound      = errors.New("account not found")
	ErrAlreadyExists = errors.New("account already exists")

	// Recovery-token errors.
	ErrTokenNotFound = errors.New("no account holds this token")

	// ErrConsistencyViolation means the backend returned structurally
	// impossible data: more than one record for a unique key, more than one
	// account for a live token, or a stored document that fails validation.
	// It is always surfaced, never resolved by picking an arbitrary record.
	ErrConsistencyViolation = errors.New("consistency violation")

	// Input validation.
	ErrInvalidArgument = errors.New("invalid argument")

	// Conditional-write protocol errors (document store).
	ErrVersionConflict = errors.New("version conflict")

	// ErrBackendUnavailable wraps transient I/O failures from the document
	// store collaborator. The store performs no automatic retry; retry
	// policy belongs to the caller.
	ErrBackendUnavailable = errors.New("backend unavailable")
)
