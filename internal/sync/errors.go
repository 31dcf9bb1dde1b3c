package sync

import "errors"

var (
	// ErrInvalidIdentity is returned when the configured user ID is not a
	// valid UUID. The cycle aborts without touching the checkpoint.
	ErrInvalidIdentity = errors.New("user id is not a valid UUID")

	// ErrConfigUnavailable is returned when the enabled-category flags
	// cannot be read. The cycle is skipped and the checkpoint stays put.
	ErrConfigUnavailable = errors.New("sync configuration unavailable")
)
