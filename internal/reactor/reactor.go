// Package reactor delivers read-readiness notifications for file
// descriptors from a single goroutine.
package reactor

import "errors"

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("reactor closed")
	// ErrRunning is returned when Run is called twice.
	ErrRunning = errors.New("reactor already running")
	// ErrUnsupported is returned by New where epoll is unavailable.
	ErrUnsupported = errors.New("reactor is not supported on this platform")
)
