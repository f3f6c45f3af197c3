package monitor

import "github.com/dmdmdm-nz/keventd/internal/kevent"

// Status describes what the service asked for and what it got.
type Status struct {
	Supported     []string          `json:"supported"`
	Requested     []string          `json:"requested"`
	Active        []string          `json:"active"`
	PortIDs       map[string]uint32 `json:"portIds"`
	KernelRelease string            `json:"kernelRelease,omitempty"`
}

func names(s kevent.ProtocolSet) []string {
	out := make([]string, 0, 2)
	for _, p := range s.List() {
		out = append(out, p.String())
	}
	return out
}
