// Package gateway serves the real-time namespaces over WebSocket.
//
// Every connection is authenticated through the session gate before the
// upgrade. Connections that fail verification never reach a namespace.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	"social-engine/internal/auth"
	"social-engine/internal/handler"
)

// EventConnected is sent to a connection right after it is attached.
const EventConnected = "connected"

// Connected is the payload of EventConnected.
type Connected struct {
	ID   string `json:"id"`
	User string `json:"user"`
}

// Options tunes the gateway.
type Options struct {
	SendBuffer    int
	MaxFrameBytes int64
	// AllowOrigins lists accepted Origin headers. Empty or "*" accepts any.
	AllowOrigins []string
}

// Server upgrades authenticated requests and attaches them to namespaces.
type Server struct {
	verifier   auth.Verifier
	namespaces map[string]*handler.Namespace
	opts       Options
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*Client]struct{}
}

// NewServer creates a gateway serving each namespace at /ws/{name}.
func NewServer(verifier auth.Verifier, opts Options, namespaces ...*handler.Namespace) *Server {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	s := &Server{
		verifier:   verifier,
		namespaces: make(map[string]*handler.Namespace, len(namespaces)),
		opts:       opts,
		clients:    make(map[*Client]struct{}),
	}
	for _, ns := range namespaces {
		s.namespaces[ns.Name()] = ns
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the HTTP handler of the gateway.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{namespace}", s.serveWS)
	mux.HandleFunc("GET /up", s.serveUp)
	return mux
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.AllowOrigins) == 0 {
		return true
	}
	for _, allowed := range s.opts.AllowOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ns, ok := s.namespaces[r.PathValue("namespace")]
	if !ok {
		http.NotFound(w, r)
		return
	}

	identity, err := s.verifier.Verify(r.Context(), auth.CredentialFromRequest(r))
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, auth.ErrGateUnavailable) {
			status = http.StatusServiceUnavailable
		}
		log.Info().Err(err).Str("namespace", ns.Name()).Str("remote", r.RemoteAddr).Msg("Rejected WebSocket handshake")
		http.Error(w, http.StatusText(status), status)
		return
	}

	id, err := gonanoid.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate connection id")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("namespace", ns.Name()).Msg("Failed to upgrade to WebSocket")
		return
	}

	c := newClient(id, identity, conn, ns, s.opts.SendBuffer)
	if err := ns.Connect(c); err != nil {
		log.Warn().Err(err).Str("conn", id).Msg("Failed to attach connection")
		conn.Close()
		return
	}
	s.track(c)
	defer s.untrack(c)

	_ = ns.Router().EmitDirect(c, EventConnected, Connected{ID: id, User: identity})

	go c.writePump()
	c.readPump(r.Context(), s.opts.MaxFrameBytes)
}

func (s *Server) serveUp(w http.ResponseWriter, _ *http.Request) {
	connections := make(map[string]int, len(s.namespaces))
	for name, ns := range s.namespaces {
		connections[name] = ns.Router().Connections()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"clients":     s.Clients(),
		"connections": connections,
	})
}

func (s *Server) track(c *Client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *Client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

// Clients returns the number of live connections across all namespaces.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Shutdown closes every live connection. Hijacked connections are not
// covered by http.Server.Shutdown, so callers run both.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	log.Info().Int("connections", len(clients)).Msg("Closing WebSocket connections")
	return ctx.Err()
}
