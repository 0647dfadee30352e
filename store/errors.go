package store

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned when a referenced entity id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is returned for empty or malformed input, such as an empty tag-name list.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict is returned by drivers when a uniqueness constraint is violated.
	ErrConflict = errors.New("conflict")
)
