//go:build linux

package reactor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/dmdmdm-nz/keventd/internal/kevent"
)

func newPipe(t *testing.T) (r, w int) {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func startReactor(t *testing.T) (*Reactor, context.CancelFunc, <-chan error) {
	t.Helper()
	r, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = r.Close()
	})
	return r, cancel, done
}

func TestReactor_DispatchesReadable(t *testing.T) {
	r, _, _ := startReactor(t)
	rfd, wfd := newPipe(t)

	fired := make(chan struct{}, 4)
	require.NoError(t, r.Register(rfd, func() {
		var buf [16]byte
		for {
			if _, err := unix.Read(rfd, buf[:]); err != nil {
				break
			}
		}
		fired <- struct{}{}
	}))

	_, err := unix.Write(wfd, []byte("x"))
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("callback not invoked for readable fd")
	}
}

func TestReactor_UnregisterStopsCallbacks(t *testing.T) {
	r, _, _ := startReactor(t)
	rfd, wfd := newPipe(t)

	fired := make(chan struct{}, 4)
	require.NoError(t, r.Register(rfd, func() { fired <- struct{}{} }))
	require.NoError(t, r.Unregister(rfd))
	assert.Error(t, r.Unregister(rfd))

	_, err := unix.Write(wfd, []byte("x"))
	require.NoError(t, err)

	select {
	case <-fired:
		t.Fatal("callback invoked after Unregister")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReactor_ContextCancelStopsRun(t *testing.T) {
	_, cancel, done := startReactor(t)
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestReactor_CloseStopsRun(t *testing.T) {
	r, _, done := startReactor(t)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, r.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}

	assert.ErrorIs(t, r.Register(0, func() {}), ErrClosed)
	assert.NoError(t, r.Close(), "Close is idempotent")
}

func TestReactor_RunTwice(t *testing.T) {
	r, _, _ := startReactor(t)
	time.Sleep(20 * time.Millisecond)
	assert.ErrorIs(t, r.Run(context.Background()), ErrRunning)
}

func TestReactor_CloseBeforeRun(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Run(context.Background()), ErrClosed)
}

// pipeSocket is a kevent.Socket over the read end of a pipe.
type pipeSocket struct {
	fd     int
	closes int
}

func (s *pipeSocket) Protocol() kevent.Protocol { return kevent.KernelObjectEvent }
func (s *pipeSocket) PortID() uint32            { return 1 }
func (s *pipeSocket) Groups() uint32            { return 1 }
func (s *pipeSocket) Fd() int                   { return s.fd }
func (s *pipeSocket) Close() error              { s.closes++; return nil }

func (s *pipeSocket) Recv(buf []byte) (int, error) {
	n, err := unix.Read(s.fd, buf)
	if errors.Is(err, unix.EAGAIN) {
		return 0, kevent.ErrWouldBlock
	}
	return n, err
}

func TestReactor_DrivesListener(t *testing.T) {
	r, _, _ := startReactor(t)
	rfd, wfd := newPipe(t)
	sock := &pipeSocket{fd: rfd}

	l := kevent.NewListener(kevent.Protocols(kevent.KernelObjectEvent),
		kevent.WithPoller(r),
		kevent.WithCapability(func(kevent.Protocol) bool { return true }),
		kevent.WithOpener(func(kevent.Protocol, *kevent.PortAllocator) (kevent.Socket, error) {
			return sock, nil
		}),
	)
	ch, unsub := l.SubscribeKernelEvents()
	defer unsub()

	_, err := unix.Write(wfd, []byte("add@/devices/virtual/misc/tun\x00ACTION=add\x00"))
	require.NoError(t, err)

	select {
	case msg := <-ch:
		ev, ok := msg.Uevent()
		require.True(t, ok)
		assert.Equal(t, "add", ev.Action)
		assert.Equal(t, "/devices/virtual/misc/tun", ev.DevPath)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for uevent through the reactor")
	}

	require.NoError(t, l.Close())
	assert.Equal(t, 1, sock.closes)
	assert.Error(t, r.Unregister(rfd), "listener already unregistered its fd")
}
