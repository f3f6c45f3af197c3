//go:build linux

package reactor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const maxEvents = 16

// Reactor is a level-triggered epoll loop. Callbacks run one at a time on
// the goroutine that called Run.
type Reactor struct {
	epfd   int
	wakefd int

	mu        sync.Mutex
	callbacks map[int]func()
	running   bool
	closed    bool
	stopped   chan struct{}
	closeOnce sync.Once
}

func New() (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakefd),
	}); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll_ctl add eventfd: %w", err)
	}

	return &Reactor{
		epfd:      epfd,
		wakefd:    wakefd,
		callbacks: make(map[int]func()),
		stopped:   make(chan struct{}),
	}, nil
}

// Register arranges for onReadable to run whenever fd is readable.
func (r *Reactor) Register(fd int, onReadable func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(fd),
	}); err != nil {
		return fmt.Errorf("epoll_ctl add fd %d: %w", fd, err)
	}
	r.callbacks[fd] = onReadable
	return nil
}

// Unregister stops notifications for fd. A callback already picked up by
// the loop may still run once.
func (r *Reactor) Unregister(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callbacks[fd]; !ok {
		return fmt.Errorf("fd %d is not registered", fd)
	}
	delete(r.callbacks, fd)
	if r.closed {
		return nil
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll_ctl del fd %d: %w", fd, err)
	}
	return nil
}

// Run dispatches readiness until ctx is done or Close is called. It returns
// nil in both cases.
func (r *Reactor) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.running {
		r.mu.Unlock()
		return ErrRunning
	}
	r.running = true
	r.mu.Unlock()
	defer close(r.stopped)

	stop := context.AfterFunc(ctx, r.wake)
	defer stop()

	events := make([]unix.EpollEvent, maxEvents)
	for {
		n, err := unix.EpollWait(r.epfd, events, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == r.wakefd {
				r.drainWake()
				continue
			}

			r.mu.Lock()
			cb := r.callbacks[fd]
			r.mu.Unlock()
			if cb != nil {
				cb()
			}
		}

		if ctx.Err() != nil || r.isClosed() {
			log.Trace("Reactor loop stopping")
			return nil
		}
	}
}

func (r *Reactor) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Reactor) wake() {
	var one [8]byte
	one[0] = 1 // eventfd counters are host-endian; any non-zero value wakes
	if _, err := unix.Write(r.wakefd, one[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		log.WithError(err).Debug("Failed to wake reactor")
	}
}

func (r *Reactor) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(r.wakefd, buf[:])
}

// Close stops Run, waits for it to return and releases the epoll and
// eventfd descriptors. Registered descriptors are not closed.
func (r *Reactor) Close() error {
	r.mu.Lock()
	r.closed = true
	running := r.running
	r.mu.Unlock()

	var err error
	r.closeOnce.Do(func() {
		r.wake()
		if running {
			<-r.stopped
		}
		err = errors.Join(unix.Close(r.epfd), unix.Close(r.wakefd))
	})
	return err
}
