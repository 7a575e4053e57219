package crushes

import "errors"

var (
	// ErrPendingExists means the requester already has a pending record.
	ErrPendingExists = errors.New("requester already has a pending crush")

	// ErrStaleMatch means a candidate pair could not be transitioned because
	// one side was missing or no longer pending. Callers must not notify.
	ErrStaleMatch = errors.New("crush pair is no longer pending")
)
