package types

import "errors"

var (
	// ErrNotFound is returned for an unknown alert, protocol, step or module id
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a lifecycle change is not allowed
	// from the entity's current state
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidArgument is returned for malformed input such as an unknown
	// severity or an empty title
	ErrInvalidArgument = errors.New("invalid argument")
)
