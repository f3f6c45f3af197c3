//go:build !linux

package kevent

// OpenSocket always fails outside Linux.
func OpenSocket(p Protocol, ports *PortAllocator) (Socket, error) {
	return nil, &OpenError{Protocol: p, Stage: "socket", Err: ErrUnsupported}
}
