package kevent

import (
	"bytes"
	"strings"
)

// KernelEventMessage is one datagram received on a KernelObjectEvent socket.
// Data handed to a synchronous handler aliases the receive buffer; use Clone
// to keep it past the callback.
type KernelEventMessage struct {
	Protocol Protocol
	Data     []byte
}

// Clone returns a copy that owns its bytes.
func (m KernelEventMessage) Clone() KernelEventMessage {
	return KernelEventMessage{Protocol: m.Protocol, Data: bytes.Clone(m.Data)}
}

// Uevent is a generic key/value view of a kernel uevent record.
type Uevent struct {
	Action  string
	DevPath string
	Env     map[string]string
}

// Uevent splits the record into its "action@devpath" header and KEY=VALUE
// pairs. ok is false for records that do not start with a kernel header,
// such as libudev re-broadcasts.
func (m KernelEventMessage) Uevent() (Uevent, bool) {
	parts := bytes.Split(bytes.TrimRight(m.Data, "\x00"), []byte{0})
	if len(parts) == 0 {
		return Uevent{}, false
	}

	action, devpath, found := strings.Cut(string(parts[0]), "@")
	if !found || action == "" || strings.Contains(action, "=") {
		return Uevent{}, false
	}

	ev := Uevent{
		Action:  action,
		DevPath: devpath,
		Env:     make(map[string]string, len(parts)-1),
	}
	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(string(p), "=")
		if !ok {
			continue
		}
		ev.Env[k] = v
	}
	return ev, true
}
