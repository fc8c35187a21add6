package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrCacheMiss     = errors.New("cache miss")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")
	ErrNoSources     = errors.New("no record sources configured")
	ErrInvalidRecord = errors.New("invalid market record")
	ErrNoStore       = errors.New("record store not configured")
)
