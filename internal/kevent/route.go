package kevent

import "fmt"

// RouteChangeKind discriminates route-change notifications. The numeric
// values are part of the wire contract and must not change.
type RouteChangeKind int

const (
	NewAddress RouteChangeKind = 0
	DelAddress RouteChangeKind = 1
	NewRoute   RouteChangeKind = 99
	DelRoute   RouteChangeKind = 100
)

func (k RouteChangeKind) String() string {
	switch k {
	case NewAddress:
		return "new_address"
	case DelAddress:
		return "del_address"
	case NewRoute:
		return "new_route"
	case DelRoute:
		return "del_route"
	default:
		return fmt.Sprintf("route_change(%d)", int(k))
	}
}

// RouteChange is one routing notification. Family is the address family
// from the fixed message header; Index is the interface index for address
// changes and zero for routes.
type RouteChange struct {
	Kind   RouteChangeKind
	Family uint8
	Index  int
}
