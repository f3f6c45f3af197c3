//go:build linux

package kevent

import (
	"syscall"

	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"
)

// routeChanges extracts the address and route notifications carried by one
// rtnetlink datagram. Attributes are not decoded.
func routeChanges(datagram []byte) ([]RouteChange, error) {
	msgs, err := syscall.ParseNetlinkMessage(datagram)
	if err != nil {
		return nil, err
	}

	var out []RouteChange
	for _, m := range msgs {
		switch m.Header.Type {
		case unix.RTM_NEWADDR, unix.RTM_DELADDR:
			if len(m.Data) < unix.SizeofIfAddrmsg {
				continue
			}
			hdr := nl.DeserializeIfAddrmsg(m.Data)
			kind := NewAddress
			if m.Header.Type == unix.RTM_DELADDR {
				kind = DelAddress
			}
			out = append(out, RouteChange{Kind: kind, Family: hdr.Family, Index: int(hdr.Index)})
		case unix.RTM_NEWROUTE, unix.RTM_DELROUTE:
			if len(m.Data) < unix.SizeofRtMsg {
				continue
			}
			hdr := nl.DeserializeRtMsg(m.Data)
			kind := NewRoute
			if m.Header.Type == unix.RTM_DELROUTE {
				kind = DelRoute
			}
			out = append(out, RouteChange{Kind: kind, Family: hdr.Family})
		}
	}
	return out, nil
}
