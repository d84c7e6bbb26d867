package domain

import "errors"

// Generic sentinel errors shared across services.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrRateLimited  = errors.New("too many requests")
)
