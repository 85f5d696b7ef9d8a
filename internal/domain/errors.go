package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidDuration  = errors.New("duration must be positive")
	ErrDurationTooLong  = errors.New("duration exceeds maximum")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrNoActiveSteps    = errors.New("session has no active steps")
	ErrSessionNotActive = errors.New("session is not active")
	ErrUnknownAction    = errors.New("unknown action")
)
