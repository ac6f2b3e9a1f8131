// Package wsfeed serves engine events to WebSocket clients for real-time
// visualization. Each connected client receives an optional state snapshot on
// connect, then the live event stream. Slow clients lose events rather than
// slowing the dispatcher.
package wsfeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/conveyor/errors"
	"github.com/c360/conveyor/event"
	"github.com/c360/conveyor/pkg/timestamp"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// clientBuffer is the per-client send queue; events beyond it are dropped
	clientBuffer = 64
)

// Envelope wraps every message sent to a client with type discrimination.
// Supported types: "snapshot" (state on connect), "event" (live stream).
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// SnapshotFunc supplies the state sent to a client on connect. A nil func
// skips the snapshot message.
type SnapshotFunc func() any

// Server is a WebSocket broadcast server implementing event.Observer.
type Server struct {
	addr     string
	path     string
	snapshot SnapshotFunc
	logger   *slog.Logger
	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*client]struct{}

	lifecycleMu sync.Mutex
	listener    net.Listener
	server      *http.Server
	running     bool

	sent    atomic.Int64
	dropped atomic.Int64
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

// New creates a feed server bound to addr, serving WebSocket upgrades at path.
func New(addr, path string, snapshot SnapshotFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = "/feed"
	}
	return &Server{
		addr:     addr,
		path:     path,
		snapshot: snapshot,
		logger:   logger.With("feed", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The feed is observe-only; any origin may watch.
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Start binds the listener and begins serving. Starting a running server is
// an error.
func (s *Server) Start() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.running {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "wsfeed", "Start", "server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.WrapTransient(err, "wsfeed", "Start", "bind listener")
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleUpgrade)

	s.listener = listener
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	s.running = true

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("feed server failed", "error", err)
		}
	}()

	s.logger.Info("feed server listening", "addr", listener.Addr().String(), "path", s.path)
	return nil
}

// Addr returns the bound listener address, useful when addr was ":0".
func (s *Server) Addr() string {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop disconnects every client and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.lifecycleMu.Lock()
	if !s.running {
		s.lifecycleMu.Unlock()
		return nil
	}
	s.running = false
	server := s.server
	s.lifecycleMu.Unlock()

	s.clientsMu.Lock()
	for c := range s.clients {
		c.close()
	}
	s.clients = make(map[*client]struct{})
	s.clientsMu.Unlock()

	if err := server.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "wsfeed", "Stop", "server shutdown")
	}
	s.logger.Info("feed server stopped", "sent", s.sent.Load(), "dropped", s.dropped.Load())
	return nil
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Observe implements event.Observer: the event is marshaled once and queued
// to every client. A client with a full queue loses the event.
func (s *Server) Observe(e event.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("event marshal failed", "error", err)
		return
	}
	data, err := json.Marshal(Envelope{
		Type:      "event",
		Timestamp: timestamp.Now(),
		Payload:   payload,
	})
	if err != nil {
		s.logger.Error("envelope marshal failed", "error", err)
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for c := range s.clients {
		select {
		case c.send <- data:
			s.sent.Add(1)
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}

	if s.snapshot != nil {
		if data, err := s.snapshotMessage(); err == nil {
			c.send <- data
		} else {
			s.logger.Warn("snapshot marshal failed", "error", err)
		}
	}

	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()

	s.logger.Debug("client connected", "remote", conn.RemoteAddr().String())

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) snapshotMessage() ([]byte, error) {
	payload, err := json.Marshal(s.snapshot())
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type:      "snapshot",
		Timestamp: timestamp.Now(),
		Payload:   payload,
	})
}

// writePump serializes all writes to one connection and keeps it alive with
// pings.
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound messages; the feed is one-way. It exists to
// process control frames and detect disconnects.
func (s *Server) readPump(c *client) {
	defer func() {
		s.removeClient(c)
		c.close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	delete(s.clients, c)
	s.clientsMu.Unlock()
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}
