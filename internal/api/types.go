package api

import "github.com/dmdmdm-nz/keventd/internal/kevent"

// Stream names accepted by /ws/events.
const (
	StreamUevent = "uevent"
	StreamRoute  = "route"
	StreamAll    = "all"
)

// EventFrame is one websocket text frame.
type EventFrame struct {
	Session string      `json:"session"`
	Type    string      `json:"type"`
	Uevent  *UeventInfo `json:"uevent,omitempty"`
	Route   *RouteInfo  `json:"route,omitempty"`
}

type UeventInfo struct {
	Action  string            `json:"action,omitempty"`
	DevPath string            `json:"devpath,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	// Raw carries records that are not kernel uevents.
	Raw []byte `json:"raw,omitempty"`
}

type RouteInfo struct {
	Kind   string `json:"kind"`
	Family uint8  `json:"family"`
	Index  int    `json:"ifindex,omitempty"`
}

func newUeventFrame(session string, msg kevent.KernelEventMessage) EventFrame {
	info := &UeventInfo{}
	if ev, ok := msg.Uevent(); ok {
		info.Action = ev.Action
		info.DevPath = ev.DevPath
		info.Env = ev.Env
	} else {
		info.Raw = msg.Data
	}
	return EventFrame{Session: session, Type: StreamUevent, Uevent: info}
}

func newRouteFrame(session string, c kevent.RouteChange) EventFrame {
	return EventFrame{
		Session: session,
		Type:    StreamRoute,
		Route: &RouteInfo{
			Kind:   c.Kind.String(),
			Family: c.Family,
			Index:  c.Index,
		},
	}
}
