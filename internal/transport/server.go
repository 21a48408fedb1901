// Package transport exposes tables to players over websockets. A Server is
// also the tables' Notifier: every state change is fanned out to the
// connections watching that table, each redacted for its own player.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/registry"
)

// Directory finds running tables.
type Directory interface {
	Get(id string) (*game.Controller, error)
	List() []registry.Summary
}

// Server is the websocket front door.
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu          sync.RWMutex
	tables      Directory
	connections map[*Connection]bool
}

// NewServer creates a server on addr. The directory may be set later with
// SetDirectory, which lets tables be opened with the server as notifier.
func NewServer(addr string, tables Directory, logger *log.Logger) *Server {
	return &Server{
		addr:   addr,
		tables: tables,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		logger:      logger.WithPrefix("server"),
	}
}

// SetDirectory sets where tables are looked up.
func (s *Server) SetDirectory(d Directory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = d
}

func (s *Server) directory() Directory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/tables", s.handleTables)
	return mux
}

// Serve listens until ctx is cancelled, then closes every connection.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting WebSocket server", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close drops every connection.
func (s *Server) Close() {
	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.connections))
	for c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}
	c := newConnection(conn, s)

	s.mu.Lock()
	s.connections[c] = true
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("Client connected", "session", c.session, "total", total)

	c.start()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleTables(w http.ResponseWriter, _ *http.Request) {
	d := s.directory()
	if d == nil {
		http.Error(w, "no tables", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(d.List())
}

// unregister forgets c and leaves every table it was seated at.
func (s *Server) unregister(c *Connection) {
	s.mu.Lock()
	_, ok := s.connections[c]
	delete(s.connections, c)
	total := len(s.connections)
	s.mu.Unlock()
	if !ok {
		return
	}

	player := c.Player()
	for _, tableID := range c.seatedTables() {
		tbl, err := s.lookup(tableID)
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		if err := tbl.Leave(ctx, player); err != nil && !errors.Is(err, game.ErrStopped) {
			s.logger.Warn("Failed to remove disconnected player", "player", player, "table", tableID, "error", err)
		}
		cancel()
	}
	s.logger.Info("Client disconnected", "session", c.session, "player", player, "total", total)
}

func (s *Server) lookup(id string) (*game.Controller, error) {
	d := s.directory()
	if d == nil {
		return nil, game.ErrUnknownTable
	}
	return d.Get(id)
}

// StateChanged sends v to every connection watching tableID. It never
// blocks: a connection that cannot keep up is closed.
func (s *Server) StateChanged(tableID string, v game.View) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs []error
	for c := range s.connections {
		if !c.watching(tableID) {
			continue
		}
		msg, err := NewMessage(TypeState, v.For(c.Player()))
		if err != nil {
			return err
		}
		if err := c.Send(msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
