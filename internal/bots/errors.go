package bots

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when the tenant already has a
	// live registry entry.
	ErrAlreadyRunning = errors.New("bot already running")
	// ErrNotRunning is returned by Stop when no registry entry exists.
	ErrNotRunning = errors.New("bot not running")
	// ErrResourceExhausted is returned when the port scan window is used up.
	ErrResourceExhausted = errors.New("no free port available")
)
