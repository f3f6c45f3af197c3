//go:build linux

package kevent

import (
	"errors"
	"sync"

	"golang.org/x/sys/unix"
)

// ueventGroup is the only multicast group the kernel uses for uevents.
const ueventGroup = 1

const routeGroups = unix.RTMGRP_IPV4_IFADDR | unix.RTMGRP_IPV6_IFADDR |
	unix.RTMGRP_IPV4_ROUTE | unix.RTMGRP_IPV6_ROUTE

// netlinkSocket is a non-blocking AF_NETLINK datagram socket.
type netlinkSocket struct {
	proto  Protocol
	fd     int
	portID uint32
	groups uint32

	closeOnce sync.Once
	closeErr  error
}

func familyFor(p Protocol) (family int, groups uint32, ok bool) {
	switch p {
	case Route:
		return unix.NETLINK_ROUTE, routeGroups, true
	case KernelObjectEvent:
		return unix.NETLINK_KOBJECT_UEVENT, ueventGroup, true
	}
	return 0, 0, false
}

// OpenSocket creates a netlink socket for p and binds it to the next port id
// from ports. On failure no descriptor is left open.
func OpenSocket(p Protocol, ports *PortAllocator) (Socket, error) {
	family, groups, ok := familyFor(p)
	if !ok {
		return nil, &OpenError{Protocol: p, Stage: "socket", Err: unix.EPROTONOSUPPORT}
	}

	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, family)
	if err != nil {
		return nil, &OpenError{Protocol: p, Stage: "socket", Err: err}
	}

	portID := ports.Next()
	if err := unix.Bind(fd, &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Pid:    portID,
		Groups: groups,
	}); err != nil {
		unix.Close(fd)
		return nil, &OpenError{Protocol: p, Stage: "bind", PortID: portID, Err: err}
	}

	return &netlinkSocket{
		proto:  p,
		fd:     fd,
		portID: portID,
		groups: groups,
	}, nil
}

func (s *netlinkSocket) Protocol() Protocol { return s.proto }
func (s *netlinkSocket) PortID() uint32     { return s.portID }
func (s *netlinkSocket) Groups() uint32     { return s.groups }
func (s *netlinkSocket) Fd() int            { return s.fd }

func (s *netlinkSocket) Recv(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(s.fd, buf, unix.MSG_DONTWAIT)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}

func (s *netlinkSocket) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = unix.Close(s.fd)
	})
	return s.closeErr
}
