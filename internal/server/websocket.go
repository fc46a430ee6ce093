package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/mdnswatch/internal/discovery"
	"github.com/muurk/mdnswatch/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	id := uuid.NewString()
	if !s.track(id, conn) {
		_ = conn.Close()
		return
	}
	defer s.untrack(id)

	logging.LogEndpoint(r.RemoteAddr, "observer_connected", zap.String("client_id", id))
	s.stream(conn)
	logging.LogEndpoint(r.RemoteAddr, "observer_disconnected", zap.String("client_id", id))
}

// stream pushes every snapshot change to conn until the peer goes away or
// the connection is closed by Shutdown.
func (s *Server) stream(conn *websocket.Conn) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan Update, 8)
	var forwarders sync.WaitGroup
	for _, t := range s.config.Trackers {
		ch, unsubscribe := t.Subscribe()
		defer unsubscribe()
		key := t.Key()
		forwarders.Add(1)
		go func() {
			defer forwarders.Done()
			forward(ctx, ch, updates, func(hosts []discovery.MatchedHost) Update {
				return Update{Type: UpdateHosts, Time: time.Now().UTC(), Service: key, Hosts: hostViews(hosts)}
			})
		}()
	}
	if c := s.config.Conflicts; c != nil {
		ch, unsubscribe := c.Subscribe()
		defer unsubscribe()
		key := c.Key()
		forwarders.Add(1)
		go func() {
			defer forwarders.Done()
			forward(ctx, ch, updates, func(hosts []discovery.ConflictingHost) Update {
				return Update{Type: UpdateConflicts, Time: time.Now().UTC(), Service: key, Conflicts: conflictViews(hosts)}
			})
		}()
	}
	defer func() {
		cancel()
		forwarders.Wait()
	}()

	// Reader: observers send nothing, but pongs and close frames must be read.
	go func() {
		defer cancel()
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(u); err != nil {
				s.log.Debug("Observer write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// forward converts snapshots from ch into updates until ctx is done.
func forward[T any](ctx context.Context, ch <-chan T, out chan<- Update, conv func(T) Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-ch:
			select {
			case out <- conv(v):
			case <-ctx.Done():
				return
			}
		}
	}
}
