//go:build !linux

package kevent

func routeChanges(datagram []byte) ([]RouteChange, error) {
	return nil, ErrUnsupported
}
