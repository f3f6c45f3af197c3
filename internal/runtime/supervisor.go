package runtime

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

var ErrAlreadyStarted = errors.New("supervisor already started")

type worker struct {
	name   string
	run    func(context.Context) error
	closeF func() error
}

// Supervisor starts named workers together and shuts them all down, in
// reverse registration order, when its context ends or any worker fails.
type Supervisor struct {
	mu      sync.Mutex
	workers []worker
	started bool
	cancel  context.CancelFunc

	wg      sync.WaitGroup
	failed  chan struct{}
	errOnce sync.Once
	err     error
}

func NewSupervisor() *Supervisor {
	return &Supervisor{failed: make(chan struct{})}
}

func (s *Supervisor) Add(name string, run func(context.Context) error, closeF func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, worker{name: name, run: run, closeF: closeF})
}

// Start runs every worker added so far on its own goroutine. Workers added
// later are never run but are still closed by Wait.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for _, w := range s.workers {
		s.wg.Add(1)
		go s.run(runCtx, w)
	}
	return nil
}

func (s *Supervisor) run(ctx context.Context, w worker) {
	defer s.wg.Done()
	logger := log.WithField("worker", w.name)
	logger.Debug("Worker started")

	err := w.run(ctx)
	switch {
	case err == nil:
		logger.Debug("Worker stopped")
	case ctx.Err() != nil:
		logger.WithError(err).Debug("Worker stopped during shutdown")
	default:
		logger.WithError(err).Error("Worker exited with error")
		s.errOnce.Do(func() {
			s.err = err
			close(s.failed)
		})
	}
}

// Wait blocks until ctx is done or a worker fails, closes every worker (last
// added first), waits for them to return and reports the first failure.
// Close errors are logged.
func (s *Supervisor) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-s.failed:
	}

	s.mu.Lock()
	workers := append([]worker(nil), s.workers...)
	cancel := s.cancel
	s.mu.Unlock()

	for i := len(workers) - 1; i >= 0; i-- {
		if workers[i].closeF == nil {
			continue
		}
		if err := workers[i].closeF(); err != nil {
			log.WithField("worker", workers[i].name).WithError(err).Warn("Worker close failed")
		}
	}
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return s.err
}
