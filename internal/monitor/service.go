package monitor

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"

	"github.com/dmdmdm-nz/keventd/internal/kevent"
	"github.com/dmdmdm-nz/keventd/internal/reactor"
)

// Loop is the readiness source the service runs.
type Loop interface {
	kevent.Poller
	Run(ctx context.Context) error
	Close() error
}

type Config struct {
	Protocols    kevent.ProtocolSet
	ResolveLinks bool
	Registerer   prometheus.Registerer
}

// Service owns the readiness loop and the kernel event listener and logs
// every notification.
type Service struct {
	cfg           Config
	loop          Loop
	listener      *kevent.Listener
	kernelRelease string
	linkName      func(index int) (string, error)

	mu     sync.Mutex
	closed bool
}

func NewService(cfg Config) (*Service, error) {
	r, err := reactor.New()
	if err != nil {
		return nil, fmt.Errorf("creating reactor: %w", err)
	}
	return newService(cfg, r), nil
}

func newService(cfg Config, loop Loop, opts ...kevent.Option) *Service {
	s := &Service{
		cfg:           cfg,
		loop:          loop,
		kernelRelease: kevent.CheckKernel(cfg.Protocols),
		linkName:      linkNameByIndex,
	}

	base := []kevent.Option{
		kevent.WithPoller(loop),
		kevent.WithMetrics(kevent.NewMetrics(cfg.Registerer)),
	}
	s.listener = kevent.NewListener(cfg.Protocols, append(base, opts...)...)

	if missing := cfg.Protocols &^ s.listener.Active(); !missing.Empty() {
		log.WithFields(log.Fields{
			"requested": cfg.Protocols,
			"missing":   missing,
			"supported": kevent.Capabilities(),
		}).Warn("Some kernel notification protocols are unavailable")
	}
	return s
}

func linkNameByIndex(index int) (string, error) {
	link, err := netlink.LinkByIndex(index)
	if err != nil {
		return "", err
	}
	return link.Attrs().Name, nil
}

func (s *Service) Start(ctx context.Context) error {
	log.WithField("protocols", s.listener.Active()).Info("Starting kernel event monitoring service")

	kernelCh, kernelUnsub := s.listener.SubscribeKernelEvents()
	defer kernelUnsub()
	routeCh, routeUnsub := s.listener.SubscribeRouteChanges()
	defer routeUnsub()

	loopErr := make(chan error, 1)
	go func() { loopErr <- s.loop.Run(ctx) }()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping kernel event monitoring service")
			return nil
		case err := <-loopErr:
			if err != nil {
				return fmt.Errorf("readiness loop: %w", err)
			}
			return nil
		case msg, ok := <-kernelCh:
			if !ok {
				kernelCh = nil
				continue
			}
			s.logKernelEvent(msg)
		case change, ok := <-routeCh:
			if !ok {
				routeCh = nil
				continue
			}
			s.logRouteChange(change)
		}
	}
}

func (s *Service) logKernelEvent(msg kevent.KernelEventMessage) {
	ev, ok := msg.Uevent()
	if !ok {
		log.WithField("len", len(msg.Data)).Debug("Received non-kernel uevent record")
		return
	}
	log.WithFields(log.Fields{
		"action":    ev.Action,
		"devpath":   ev.DevPath,
		"subsystem": ev.Env["SUBSYSTEM"],
		"seqnum":    ev.Env["SEQNUM"],
	}).Info("Kernel object event")
}

func (s *Service) logRouteChange(c kevent.RouteChange) {
	fields := log.Fields{
		"kind":   c.Kind,
		"family": c.Family,
	}
	if c.Index > 0 {
		fields["ifindex"] = c.Index
		if s.cfg.ResolveLinks {
			if name, err := s.linkName(c.Index); err == nil {
				fields["interface"] = name
			} else {
				log.WithError(err).WithField("ifindex", c.Index).Trace("Failed to resolve link")
			}
		}
	}
	log.WithFields(fields).Info("Route change")
}

// SubscribeKernelEvents streams uevents to an additional consumer.
func (s *Service) SubscribeKernelEvents() (<-chan kevent.KernelEventMessage, func()) {
	return s.listener.SubscribeKernelEvents()
}

func (s *Service) SubscribeRouteChanges() (<-chan kevent.RouteChange, func()) {
	return s.listener.SubscribeRouteChanges()
}

func (s *Service) Status() Status {
	active := s.listener.Active()
	st := Status{
		Supported:     names(kevent.Capabilities()),
		Requested:     names(s.cfg.Protocols),
		Active:        names(active),
		PortIDs:       make(map[string]uint32),
		KernelRelease: s.kernelRelease,
	}
	for _, p := range active.List() {
		if id, ok := s.listener.PortID(p); ok {
			st.PortIDs[p.String()] = id
		}
	}
	return st
}

// Close tears down the listener before the loop so no callback outlives
// its socket.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	lerr := s.listener.Close()
	if err := s.loop.Close(); err != nil {
		log.WithError(err).Debug("Failed to close readiness loop")
	}
	return lerr
}
