package kevent

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/keventd/internal/runtime"
)

// Poller delivers read-readiness for file descriptors. onReadable may run
// on any goroutine; Unregister must be called before the descriptor closes.
type Poller interface {
	Register(fd int, onReadable func()) error
	Unregister(fd int) error
}

// subscriberBuffer is the channel buffer given to each subscriber.
const subscriberBuffer = 16

// DefaultSubscriberBacklog is how many events a subscriber may fall behind
// before it is dropped.
const DefaultSubscriberBacklog = 1024

// Listener owns one netlink socket per requested, available protocol and
// fans the notifications they carry out to subscribers.
type Listener struct {
	poller   Poller
	ports    *PortAllocator
	open     OpenFunc
	supports CapabilityFunc
	metrics  *Metrics
	onKernel func(KernelEventMessage)
	onRoute  func(RouteChange)
	backlog  int

	// drainMu serializes drains and owns buf; Close takes it to wait for a
	// drain in progress. mu guards sockets and closed and is never held
	// while a handler runs.
	drainMu sync.Mutex
	buf     []byte

	mu      sync.Mutex
	sockets map[Protocol]Socket
	closed  bool

	kernelEvents *runtime.Fanout[KernelEventMessage]
	routeChanges *runtime.Fanout[RouteChange]
}

// NewListener opens a socket for every protocol in protocols that this build
// supports and registers it with the poller. It never fails: a protocol
// that cannot be opened or registered is logged and left out of Active.
func NewListener(protocols ProtocolSet, opts ...Option) *Listener {
	l := &Listener{
		ports:    DefaultPorts,
		open:     OpenSocket,
		supports: Supports,
		sockets:  make(map[Protocol]Socket),
		buf:      make([]byte, MaxMessageSize),
		backlog:  DefaultSubscriberBacklog,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.kernelEvents = runtime.NewBoundedFanout[KernelEventMessage](subscriberBuffer, l.backlog,
		func() { l.dropSubscriber(KernelObjectEvent) })
	l.routeChanges = runtime.NewBoundedFanout[RouteChange](subscriberBuffer, l.backlog,
		func() { l.dropSubscriber(Route) })

	for _, p := range protocols.List() {
		l.start(p)
	}

	log.WithFields(log.Fields{
		"requested": protocols,
		"active":    l.Active(),
	}).Debug("Kernel event listener constructed")
	return l
}

func (l *Listener) start(p Protocol) {
	logger := log.WithField("protocol", p)
	if !l.supports(p) {
		logger.Debug("Protocol not available in this build, skipping")
		return
	}

	sock, err := l.open(p, l.ports)
	if err != nil {
		stage := "socket"
		var oe *OpenError
		if errors.As(err, &oe) {
			stage = oe.Stage
		}
		l.metrics.openFailed(p, stage)
		logger.WithError(err).Warn("Failed to open netlink socket")
		return
	}

	if l.poller == nil {
		l.metrics.openFailed(p, "register")
		logger.Warn("No poller configured, dropping netlink socket")
		_ = sock.Close()
		return
	}
	if err := l.poller.Register(sock.Fd(), func() { l.onReadable(sock) }); err != nil {
		l.metrics.openFailed(p, "register")
		logger.WithError(err).Warn("Failed to register netlink socket for readiness")
		_ = sock.Close()
		return
	}

	l.mu.Lock()
	l.sockets[p] = sock
	l.mu.Unlock()
	l.metrics.socketOpened(p)

	logger.WithFields(log.Fields{
		"fd":     sock.Fd(),
		"portID": sock.PortID(),
		"groups": sock.Groups(),
	}).Info("Listening for kernel notifications")
}

// onReadable drains sock. It is a no-op once Close has started.
func (l *Listener) onReadable(sock Socket) {
	l.drainMu.Lock()
	defer l.drainMu.Unlock()
	if l.isClosed() {
		return
	}

	p := sock.Protocol()
	res := Drain(sock, l.buf, func(b []byte) { l.dispatch(p, b) })
	l.metrics.drained(p, res)

	fields := log.Fields{
		"protocol": p,
		"messages": res.Messages,
		"reason":   res.Reason,
	}
	switch res.Reason {
	case DrainPeerGone:
		log.WithFields(fields).Debug("Zero-length netlink receive ended drain pass")
	case DrainError:
		log.WithFields(fields).WithError(res.Err).Debug("Netlink receive error ended drain pass")
	default:
		log.WithFields(fields).Trace("Drain pass complete")
	}
}

func (l *Listener) dispatch(p Protocol, b []byte) {
	switch p {
	case KernelObjectEvent:
		msg := KernelEventMessage{Protocol: p, Data: b}
		if l.onKernel != nil {
			l.onKernel(msg)
		}
		if l.kernelEvents.Len() > 0 {
			l.kernelEvents.Broadcast(msg.Clone())
		}
	case Route:
		changes, err := routeChanges(b)
		if err != nil {
			log.WithError(err).WithField("len", len(b)).Debug("Discarding malformed rtnetlink datagram")
			return
		}
		for _, c := range changes {
			if l.onRoute != nil {
				l.onRoute(c)
			}
			l.routeChanges.Broadcast(c)
		}
	}
}

func (l *Listener) dropSubscriber(p Protocol) {
	l.metrics.subscriberDropped(p)
	log.WithFields(log.Fields{
		"protocol": p,
		"backlog":  l.backlog,
	}).Warn("Dropping subscriber that fell behind")
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Active returns the protocols backed by a live socket.
func (l *Listener) Active() ProtocolSet {
	l.mu.Lock()
	defer l.mu.Unlock()
	var s ProtocolSet
	for p := range l.sockets {
		s = s.With(p)
	}
	return s
}

// PortID returns the port id bound for p, if p is active.
func (l *Listener) PortID(p Protocol) (uint32, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sock, ok := l.sockets[p]
	if !ok {
		return 0, false
	}
	return sock.PortID(), true
}

// SubscribeKernelEvents streams uevent datagrams. Each message owns its bytes.
// The channel closes when the listener closes or when the subscriber falls
// more than the backlog behind.
func (l *Listener) SubscribeKernelEvents() (<-chan KernelEventMessage, func()) {
	return l.kernelEvents.Subscribe()
}

// SubscribeRouteChanges streams routing notifications.
func (l *Listener) SubscribeRouteChanges() (<-chan RouteChange, func()) {
	return l.routeChanges.Subscribe()
}

// Close deregisters and closes every socket and ends all subscriptions. It
// waits for a drain in progress; no handler runs after Close returns, and a
// readiness callback arriving later is ignored. Handlers may query the
// listener but must not call Close.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	sockets := l.sockets
	l.sockets = make(map[Protocol]Socket)
	l.mu.Unlock()

	l.drainMu.Lock()
	defer l.drainMu.Unlock()

	var errs []error
	for _, p := range allProtocols {
		sock, ok := sockets[p]
		if !ok {
			continue
		}
		if l.poller != nil {
			if err := l.poller.Unregister(sock.Fd()); err != nil {
				log.WithField("protocol", p).WithError(err).Debug("Failed to unregister netlink socket")
			}
		}
		if err := sock.Close(); err != nil {
			errs = append(errs, err)
		}
		l.metrics.socketClosed(p)
		log.WithFields(log.Fields{
			"protocol": p,
			"portID":   sock.PortID(),
		}).Debug("Closed netlink socket")
	}

	l.kernelEvents.Close()
	l.routeChanges.Close()
	return errors.Join(errs...)
}
