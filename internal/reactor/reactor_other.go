//go:build !linux

package reactor

import "context"

// Reactor is unavailable outside Linux.
type Reactor struct{}

func New() (*Reactor, error) { return nil, ErrUnsupported }

func (r *Reactor) Register(fd int, onReadable func()) error { return ErrUnsupported }
func (r *Reactor) Unregister(fd int) error                  { return ErrUnsupported }
func (r *Reactor) Run(ctx context.Context) error            { return ErrUnsupported }
func (r *Reactor) Close() error                             { return nil }
