package kevent

import (
	"os"
	"sync/atomic"
)

// PortAllocator hands out netlink port ids. The kernel keys unicast
// addresses by (protocol, port id), so two sockets of one protocol in the
// same process must never share an id. Ids are never reused; the counter
// wraps at 2^32.
type PortAllocator struct {
	next atomic.Uint32
}

// NewPortAllocator returns an allocator whose first id is seed.
func NewPortAllocator(seed uint32) *PortAllocator {
	a := &PortAllocator{}
	a.next.Store(seed)
	return a
}

// Next returns the current id and advances the counter. Safe for concurrent use.
func (a *PortAllocator) Next() uint32 {
	return a.next.Add(1) - 1
}

// DefaultPorts is the process-wide allocator, seeded with the process id.
var DefaultPorts = NewPortAllocator(uint32(os.Getpid()))
