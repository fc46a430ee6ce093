package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/muurk/mdnswatch/internal/discovery"
	"github.com/muurk/mdnswatch/internal/logging"
)

// DefaultListen is the feed address used when none is configured.
const DefaultListen = "127.0.0.1:8765"

const shutdownTimeout = 5 * time.Second

// Config holds the observer feed configuration
type Config struct {
	// Listen is the host:port to serve on
	Listen string

	// Trackers are the search trackers whose snapshots are served
	Trackers []*discovery.Tracker

	// Conflicts is the conflict tracker, or nil when not advertising
	Conflicts *discovery.ConflictTracker

	// Gatherer serves /metrics when non-nil
	Gatherer prometheus.Gatherer
}

// Server exposes tracker snapshots over HTTP and streams changes to
// WebSocket observers.
type Server struct {
	config   Config
	log      *zap.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader

	wg sync.WaitGroup

	mu          sync.Mutex
	listener    net.Listener
	shutdown    bool
	activeConns map[string]*websocket.Conn
}

// New creates a new Server instance
func New(config Config) *Server {
	if config.Listen == "" {
		config.Listen = DefaultListen
	}
	s := &Server{
		config: config,
		log:    logging.Named("feed"),
		mux:    http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// observers are local tools, not browsers
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		activeConns: make(map[string]*websocket.Conn),
	}

	s.mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	if config.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

// Handler returns the HTTP handler serving every endpoint.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve listens on the configured address and blocks until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	httpServer := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: writeWait,
	}

	s.log.Info("Observer feed listening", zap.String("addr", listener.Addr().String()))

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errChan:
		s.log.Error("Observer feed failed", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("HTTP shutdown error", zap.Error(err))
	}
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if serveErr != nil {
		return fmt.Errorf("observer feed failed: %w", serveErr)
	}
	return nil
}

// Addr returns the bound address once Serve is listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown closes every observer connection and waits for their streams to
// end. HTTP connections are owned by the http.Server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	for id, conn := range s.activeConns {
		s.log.Debug("Closing observer connection", zap.String("client_id", id))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.log.Warn("Shutdown timeout, observers still connected")
		return ctx.Err()
	}
}

// ActiveConnections returns the number of connected observers
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

func (s *Server) track(id string, conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return false
	}
	s.activeConns[id] = conn
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	delete(s.activeConns, id)
	s.mu.Unlock()
	s.wg.Done()
}
