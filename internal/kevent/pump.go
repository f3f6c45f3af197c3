package kevent

import "errors"

// DrainReason records why a drain pass stopped.
type DrainReason int

const (
	// DrainWouldBlock means the socket queue is empty.
	DrainWouldBlock DrainReason = iota
	// DrainPeerGone means a receive returned zero bytes.
	DrainPeerGone
	// DrainError means a receive failed with anything but would-block.
	DrainError
)

func (r DrainReason) String() string {
	switch r {
	case DrainWouldBlock:
		return "would_block"
	case DrainPeerGone:
		return "peer_gone"
	case DrainError:
		return "error"
	default:
		return "unknown"
	}
}

// DrainResult summarises one drain pass.
type DrainResult struct {
	Messages int
	Reason   DrainReason
	// Err is set only for DrainError and is diagnostic.
	Err error
}

// Drain reads datagrams from sock into buf until the socket reports
// would-block, a zero-length read, or an error. emit is called once per
// datagram, in arrival order, with a slice of buf that is only valid for the
// duration of the call. Drain never blocks and never closes sock.
func Drain(sock Socket, buf []byte, emit func([]byte)) DrainResult {
	var res DrainResult
	for {
		n, err := sock.Recv(buf)
		switch {
		case errors.Is(err, ErrWouldBlock):
			res.Reason = DrainWouldBlock
			return res
		case err != nil:
			res.Reason = DrainError
			res.Err = err
			return res
		case n <= 0:
			res.Reason = DrainPeerGone
			return res
		}
		res.Messages++
		emit(buf[:n])
	}
}
