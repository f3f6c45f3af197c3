package kevent

import (
	"errors"
	"fmt"
	"sync"
)

// recvStep is one scripted result of fakeSocket.Recv.
type recvStep struct {
	n   int
	err error
}

func datagram(n int) recvStep { return recvStep{n: n} }

var wouldBlock = recvStep{err: ErrWouldBlock}

// fakeSocket replays a script of receive results. Once the script is
// exhausted every Recv reports would-block.
type fakeSocket struct {
	proto  Protocol
	fd     int
	portID uint32

	mu       sync.Mutex
	script   []recvStep
	payloads [][]byte
	recvs    int
	closes   int
	journal  *journal
}

func (s *fakeSocket) Protocol() Protocol { return s.proto }
func (s *fakeSocket) PortID() uint32     { return s.portID }
func (s *fakeSocket) Groups() uint32     { return 1 }
func (s *fakeSocket) Fd() int            { return s.fd }

func (s *fakeSocket) Recv(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recvs++
	if len(s.script) == 0 {
		return 0, ErrWouldBlock
	}
	step := s.script[0]
	s.script = s.script[1:]
	if step.err != nil {
		return 0, step.err
	}
	if len(s.payloads) > 0 {
		n := copy(buf, s.payloads[0])
		s.payloads = s.payloads[1:]
		return n, nil
	}
	n := min(step.n, len(buf))
	for i := 0; i < n; i++ {
		buf[i] = byte(s.recvs)
	}
	return n, nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	s.journal.add(fmt.Sprintf("close %d", s.fd))
	return nil
}

func (s *fakeSocket) push(steps ...recvStep) {
	s.mu.Lock()
	s.script = append(s.script, steps...)
	s.mu.Unlock()
}

func (s *fakeSocket) pushPayload(b []byte) {
	s.mu.Lock()
	s.script = append(s.script, datagram(len(b)))
	s.payloads = append(s.payloads, b)
	s.mu.Unlock()
}

func (s *fakeSocket) counts() (recvs, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recvs, s.closes
}

// journal records the order of poller and socket operations.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(e string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	j.entries = append(j.entries, e)
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// fakeOpener hands out fakeSockets and remembers them.
type fakeOpener struct {
	mu      sync.Mutex
	nextFd  int
	fail    map[Protocol]error
	sockets []*fakeSocket
	calls   int
	journal *journal
}

func newFakeOpener(j *journal) *fakeOpener {
	return &fakeOpener{nextFd: 100, fail: make(map[Protocol]error), journal: j}
}

func (o *fakeOpener) Open(p Protocol, ports *PortAllocator) (Socket, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if err := o.fail[p]; err != nil {
		return nil, err
	}
	s := &fakeSocket{proto: p, fd: o.nextFd, portID: ports.Next(), journal: o.journal}
	o.nextFd++
	o.sockets = append(o.sockets, s)
	return s, nil
}

func (o *fakeOpener) socketFor(p Protocol) *fakeSocket {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, s := range o.sockets {
		if s.proto == p {
			return s
		}
	}
	return nil
}

// fakePoller stores callbacks so tests can fire readiness by hand.
type fakePoller struct {
	mu          sync.Mutex
	callbacks   map[int]func()
	registerErr error
	journal     *journal
}

func newFakePoller(j *journal) *fakePoller {
	return &fakePoller{callbacks: make(map[int]func()), journal: j}
}

func (p *fakePoller) Register(fd int, onReadable func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registerErr != nil {
		return p.registerErr
	}
	p.callbacks[fd] = onReadable
	p.journal.add(fmt.Sprintf("register %d", fd))
	return nil
}

func (p *fakePoller) Unregister(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.callbacks[fd]; !ok {
		return errors.New("not registered")
	}
	delete(p.callbacks, fd)
	p.journal.add(fmt.Sprintf("unregister %d", fd))
	return nil
}

func (p *fakePoller) registered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.callbacks)
}

// callback returns the readiness callback for fd even after Unregister, to
// model an event that was already pending.
func (p *fakePoller) callback(fd int) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callbacks[fd]
}
