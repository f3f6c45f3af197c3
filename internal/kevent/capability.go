package kevent

// capabilities is fixed when the package is built; see the capability_*.go
// files for the build tags that decide each entry.
var capabilities = map[Protocol]bool{
	Route:             routeCompiled,
	KernelObjectEvent: ueventCompiled,
}

// Supports reports whether p was compiled into this build. It never fails
// and does not depend on any listener.
func Supports(p Protocol) bool {
	return capabilities[p]
}

// Capabilities returns every protocol compiled into this build.
func Capabilities() ProtocolSet {
	var s ProtocolSet
	for _, p := range allProtocols {
		if Supports(p) {
			s = s.With(p)
		}
	}
	return s
}

// CapabilityFunc answers whether a protocol may be opened.
type CapabilityFunc func(Protocol) bool
