package service

import "errors"

var (
	// ErrNotFound means the operation targeted a habit id the owner does not have.
	ErrNotFound = errors.New("habit not found")
	// ErrInvalidOwner means the owner identifier was missing or blank.
	ErrInvalidOwner = errors.New("invalid owner")
	// ErrStorageUnavailable wraps failures of the persistence medium.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrSchedulerUnavailable wraps failures of the permission or trigger API.
	ErrSchedulerUnavailable = errors.New("scheduler unavailable")
)
