package domain

import "errors"

// Error kinds. Specific errors wrap one of these so callers can branch with errors.Is.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("concurrent modification")
	ErrStoreRead         = errors.New("store read failed")
	ErrStoreWrite        = errors.New("store write failed")
)
