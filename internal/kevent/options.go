package kevent

// Option configures a Listener.
type Option func(*Listener)

// WithPoller sets the readiness source sockets are registered with.
func WithPoller(p Poller) Option {
	return func(l *Listener) { l.poller = p }
}

// WithPortAllocator replaces DefaultPorts.
func WithPortAllocator(a *PortAllocator) Option {
	return func(l *Listener) { l.ports = a }
}

// WithOpener replaces OpenSocket.
func WithOpener(open OpenFunc) Option {
	return func(l *Listener) { l.open = open }
}

// WithCapability replaces Supports.
func WithCapability(supports CapabilityFunc) Option {
	return func(l *Listener) { l.supports = supports }
}

// WithMetrics records socket and drain counters in m. A nil m disables them.
func WithMetrics(m *Metrics) Option {
	return func(l *Listener) { l.metrics = m }
}

// WithKernelEventHandler calls h synchronously for every uevent datagram.
// The message data is only valid until h returns. h may call Active and
// PortID.
func WithKernelEventHandler(h func(KernelEventMessage)) Option {
	return func(l *Listener) { l.onKernel = h }
}

// WithRouteChangeHandler calls h synchronously for every route change. h may
// call Active and PortID.
func WithRouteChangeHandler(h func(RouteChange)) Option {
	return func(l *Listener) { l.onRoute = h }
}

// WithSubscriberBacklog sets how many events a subscriber may fall behind
// before its channel is closed. Zero means unlimited.
func WithSubscriberBacklog(n int) Option {
	return func(l *Listener) { l.backlog = n }
}
