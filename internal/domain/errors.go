package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrLoading          = errors.New("applications are still loading")
	ErrNoPendingRemoval = errors.New("no removal awaiting confirmation")
)

var ErrInactive = errors.New("view is not active")
