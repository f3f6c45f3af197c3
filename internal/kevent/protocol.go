package kevent

import (
	"fmt"
	"strings"
)

// Protocol identifies one kernel notification protocol. Values are single
// bits so they can be combined into a ProtocolSet.
type Protocol uint8

const (
	// Route selects routing-table change notifications (NETLINK_ROUTE).
	Route Protocol = 1 << iota
	// KernelObjectEvent selects device/subsystem uevents (NETLINK_KOBJECT_UEVENT).
	KernelObjectEvent
)

// allProtocols lists every protocol in the order listeners open them.
var allProtocols = []Protocol{Route, KernelObjectEvent}

func (p Protocol) String() string {
	switch p {
	case Route:
		return "route"
	case KernelObjectEvent:
		return "uevent"
	default:
		return fmt.Sprintf("protocol(%d)", uint8(p))
	}
}

// ProtocolSet is a bitwise-OR of Protocol values.
type ProtocolSet uint8

// Protocols builds a set from individual protocols.
func Protocols(ps ...Protocol) ProtocolSet {
	var s ProtocolSet
	for _, p := range ps {
		s |= ProtocolSet(p)
	}
	return s
}

// Has reports whether p is a member of the set.
func (s ProtocolSet) Has(p Protocol) bool {
	return s&ProtocolSet(p) != 0
}

// With returns the set with p added.
func (s ProtocolSet) With(p Protocol) ProtocolSet {
	return s | ProtocolSet(p)
}

// List returns the members in stable order (Route first).
func (s ProtocolSet) List() []Protocol {
	var out []Protocol
	for _, p := range allProtocols {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// Empty reports whether the set has no members.
func (s ProtocolSet) Empty() bool {
	return len(s.List()) == 0
}

func (s ProtocolSet) String() string {
	names := make([]string, 0, len(allProtocols))
	for _, p := range s.List() {
		names = append(names, p.String())
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// ParseProtocolSet parses a comma or pipe separated list of protocol names
// ("uevent", "route", "all", "none").
func ParseProtocolSet(value string) (ProtocolSet, error) {
	var s ProtocolSet
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == '|' || r == ' '
	})
	for _, f := range fields {
		switch strings.ToLower(f) {
		case "route", "rtnetlink":
			s = s.With(Route)
		case "uevent", "kobject", "kobject-uevent":
			s = s.With(KernelObjectEvent)
		case "all":
			s = Protocols(allProtocols...)
		case "none":
		default:
			return 0, fmt.Errorf("unknown protocol %q", f)
		}
	}
	return s, nil
}
