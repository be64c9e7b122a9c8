// Package server provides the Studlancer backend HTTP API and the
// real-time WebSocket event feed.
//
// The API exposes the endpoints the workspace editor syncs against:
// fetch-by-id, the batched updateAttributes mutation, document lifecycle
// (publish, trash, restore, delete), and the workspace listing. Every
// accepted mutation is also broadcast to connected WebSocket clients so
// other workspace views can refresh.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/studlancer/studlancer/internal/db"
)

// EventType defines the type of broadcast event.
type EventType string

const (
	// EventDocumentUpdate indicates attributes of a draft changed.
	EventDocumentUpdate EventType = "document_update"

	// EventLifecycle indicates a lifecycle transition (created, published,
	// trashed, restored, deleted).
	EventLifecycle EventType = "lifecycle"
)

// Event is a broadcast message sent to WebSocket clients.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// DocumentEventData describes which document changed and how.
type DocumentEventData struct {
	DocumentID string `json:"document_id"`
	Action     string `json:"action"`
	Owner      string `json:"owner,omitempty"`
}

// TokenResolver resolves a bearer token to a user id. The auth provider is
// an external collaborator; the default resolver treats the token itself
// as the user id, which is enough for local development and tests.
type TokenResolver func(token string) (string, error)

// Config holds server configuration.
type Config struct {
	// Port to listen on (default: 8080)
	Port int

	// Resolve maps bearer tokens to user ids.
	Resolve TokenResolver

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:    8080,
		Resolve: func(token string) (string, error) { return token, nil },
		Logger:  log.New(log.Writer(), "[server] ", log.LstdFlags),
	}
}

// Server serves the document API and manages WebSocket subscribers.
type Server struct {
	database *db.DB
	resolve  TokenResolver
	addr     string
	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex
	broadcast chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// New creates a server over an opened database.
func New(database *db.DB, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.Resolve == nil {
		config.Resolve = func(token string) (string, error) { return token, nil }
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		database:  database,
		resolve:   config.Resolve,
		addr:      fmt.Sprintf(":%d", config.Port),
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Event, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/documents", s.withAuth(s.handleCreate))
	mux.HandleFunc("GET /api/documents/{id}", s.withAuth(s.handleGet))
	mux.HandleFunc("DELETE /api/documents/{id}", s.withAuth(s.handleDelete))
	mux.HandleFunc("POST /api/documents/{id}/publish", s.withAuth(s.handlePublish))
	mux.HandleFunc("POST /api/documents/{id}/unpublish", s.withAuth(s.handleUnpublish))
	mux.HandleFunc("POST /api/documents/{id}/trash", s.withAuth(s.handleTrash))
	mux.HandleFunc("POST /api/documents/{id}/restore", s.withAuth(s.handleRestore))
	mux.HandleFunc("POST /api/documents/{id}/view", s.withAuth(s.handleView))
	mux.HandleFunc("POST /api/update", s.withAuth(s.handleUpdateAttributes))
	mux.HandleFunc("GET /api/workspace", s.withAuth(s.handleWorkspace))
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start begins serving. Non-blocking; use Stop to shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("API server listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.logger.Println("Stopping server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()
	s.logger.Println("Server stopped")
	return nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Broadcast queues an event for every connected WebSocket client.
func (s *Server) Broadcast(ev Event) {
	select {
	case s.broadcast <- ev:
	case <-s.ctx.Done():
	default:
		s.logger.Println("Warning: broadcast channel full, dropping event")
	}
}

func (s *Server) broadcastEvent(typ EventType, data DocumentEventData) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Printf("Failed to marshal event data: %v", err)
		return
	}
	s.Broadcast(Event{Type: typ, Timestamp: time.Now(), Data: payload})
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case ev := <-s.broadcast:
			if ev.Timestamp.IsZero() {
				ev.Timestamp = time.Now()
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Printf("Failed to marshal event: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	count := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", count)

	go s.readLoop(conn)
}

func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
		// Clients don't send anything we act on; reading keeps the
		// connection alive and notices disconnects.
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		count := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", count)
	} else {
		s.clientsMu.Unlock()
	}
}

// ClientCount returns the current number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}
