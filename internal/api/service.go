package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/keventd/internal/kevent"
	"github.com/dmdmdm-nz/keventd/internal/monitor"
)

const shutdownTimeout = 5 * time.Second

// Monitor is the part of the monitor service the API reads from.
type Monitor interface {
	Status() monitor.Status
	SubscribeKernelEvents() (<-chan kevent.KernelEventMessage, func())
	SubscribeRouteChanges() (<-chan kevent.RouteChange, func())
}

// Service represents the HTTP server for the API
type Service struct {
	address  string
	port     int
	gatherer prometheus.Gatherer

	mon Monitor

	mu     sync.Mutex
	server *http.Server
	closed bool
}

func NewService(host string, port int, gatherer prometheus.Gatherer) *Service {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Service{
		address:  host,
		port:     port,
		gatherer: gatherer,
	}
}

func (s *Service) AttachMonitor(m Monitor) {
	s.mon = m
}

// Start serves the API until ctx is cancelled or Close is called.
func (s *Service) Start(ctx context.Context) error {
	if s.mon == nil {
		log.Error("AttachMonitor was not called before Start")
		<-ctx.Done()
		return nil
	}

	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.server = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("Starting keventd API service at %s", srv.Addr)
	defer log.Info("Stopping keventd API service")

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// Handler returns the API routes.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if len(s.mon.Status().Active) == 0 {
				http.Error(w, "no kernel notification protocol is active", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Add("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.mon.Status()); err != nil {
			http.Error(w, fmt.Sprintf("Failed to encode status: %v", err), http.StatusInternalServerError)
		}
	})
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws/events", func(w http.ResponseWriter, r *http.Request) {
		stream := r.URL.Query().Get("stream")
		if stream == "" {
			stream = StreamAll
		}
		switch stream {
		case StreamUevent, StreamRoute, StreamAll:
		default:
			http.Error(w, fmt.Sprintf("unknown stream %q", stream), http.StatusBadRequest)
			return
		}
		StreamEvents(s, stream, w, r)
	})
	return mux
}
