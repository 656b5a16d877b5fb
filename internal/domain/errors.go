package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrMalformedEvent = errors.New("malformed event")
	ErrLockHeld       = errors.New("lock already held")
	ErrLockLost       = errors.New("lock no longer held")
)
