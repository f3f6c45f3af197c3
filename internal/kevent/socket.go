package kevent

import (
	"errors"
	"fmt"
)

// MaxMessageSize bounds a single receive; larger datagrams are truncated by
// the kernel.
const MaxMessageSize = 4096

// ErrUnsupported is returned by OpenSocket on platforms without netlink.
var ErrUnsupported = errors.New("netlink sockets are not supported on this platform")

// ErrWouldBlock is returned by Socket.Recv when no datagram is queued.
var ErrWouldBlock = errors.New("receive would block")

// Socket is one open, bound netlink socket. It exclusively owns its
// descriptor.
type Socket interface {
	Protocol() Protocol
	PortID() uint32
	// Groups is the multicast group mask the socket was bound with.
	Groups() uint32
	Fd() int
	// Recv reads one datagram without blocking. It returns ErrWouldBlock
	// when the queue is empty.
	Recv(buf []byte) (int, error)
	// Close releases the descriptor. Only the first call has an effect.
	Close() error
}

// OpenFunc opens a socket for p, drawing its port id from ports.
type OpenFunc func(p Protocol, ports *PortAllocator) (Socket, error)

// OpenError describes a failed OpenSocket call.
type OpenError struct {
	Protocol Protocol
	Stage    string // "socket" or "bind"
	PortID   uint32
	Err      error
}

func (e *OpenError) Error() string {
	if e.Stage == "bind" {
		return fmt.Sprintf("%s netlink %s (port %d): %v", e.Protocol, e.Stage, e.PortID, e.Err)
	}
	return fmt.Sprintf("%s netlink %s: %v", e.Protocol, e.Stage, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }
