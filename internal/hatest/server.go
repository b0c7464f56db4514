package hatest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/hass-mcp/internal/auth"
)

// Defaults for a new Server.
const (
	DefaultToken   = "mock_token"
	DefaultVersion = "2023.3.0"
)

// Server is an in-process Home Assistant with a REST API and a WebSocket
// API at /api/websocket.
type Server struct {
	URL string // REST base URL, e.g. http://127.0.0.1:54321

	token   string
	version string

	httpSrv  *httptest.Server
	store    *store
	upgrader websocket.Upgrader

	mu         sync.Mutex
	conns      map[*wsConn]bool // value: authenticated
	requests   map[string]int
	silentAuth bool
	restDown   bool
	drop       map[string]bool
	delays     map[string]time.Duration
	reorder    int
}

// Option configures a Server.
type Option func(*Server)

// WithToken sets the accepted access token.
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

// WithVersion sets the version reported by GET /api and auth frames.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// NewServer starts a mock server. Callers must Close it.
func NewServer(opts ...Option) *Server {
	s := &Server{
		token:    DefaultToken,
		version:  DefaultVersion,
		store:    newStore(),
		conns:    make(map[*wsConn]bool),
		requests: make(map[string]int),
		drop:     make(map[string]bool),
		delays:   make(map[string]time.Duration),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpSrv = httptest.NewServer(s.routes())
	s.URL = s.httpSrv.URL
	return s
}

// SocketURL returns the WebSocket endpoint.
func (s *Server) SocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/api/websocket"
}

// Token returns the accepted access token.
func (s *Server) Token() string {
	return s.token
}

// Close drops every socket and stops the server.
func (s *Server) Close() {
	s.DropConnections()
	s.httpSrv.Close()
}

// SetSilentAuth makes the server never answer the auth frame.
func (s *Server) SetSilentAuth(silent bool) {
	s.mu.Lock()
	s.silentAuth = silent
	s.mu.Unlock()
}

// SetRESTAvailable makes every REST endpoint answer 503 when false.
func (s *Server) SetRESTAvailable(available bool) {
	s.mu.Lock()
	s.restDown = !available
	s.mu.Unlock()
}

// DropResponses makes the server read but never answer the given message types.
func (s *Server) DropResponses(msgTypes ...string) {
	s.mu.Lock()
	for _, t := range msgTypes {
		s.drop[t] = true
	}
	s.mu.Unlock()
}

// DelayResponses delays answers to msgType by d.
func (s *Server) DelayResponses(msgType string, d time.Duration) {
	s.mu.Lock()
	s.delays[msgType] = d
	s.mu.Unlock()
}

// ReorderResponses holds answers until n are queued on a socket, then sends
// them newest first. n <= 1 disables reordering.
func (s *Server) ReorderResponses(n int) {
	s.mu.Lock()
	s.reorder = n
	s.mu.Unlock()
}

// DropConnections closes every open socket.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.conn.Close()
	}
}

// Broadcast writes frame to every authenticated socket.
func (s *Server) Broadcast(frame any) {
	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for c, authed := range s.conns {
		if authed {
			conns = append(conns, c)
		}
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.writeJSON(frame)
	}
}

// ConnectionCount returns the number of authenticated sockets.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, authed := range s.conns {
		if authed {
			n++
		}
	}
	return n
}

// Requests returns how many socket frames of msgType were received.
func (s *Server) Requests(msgType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[msgType]
}

// ServiceCalls returns every service call received on either transport.
func (s *Server) ServiceCalls() []ServiceCall {
	return s.store.serviceCalls()
}

// Automations returns the stored automations ordered by id.
func (s *Server) Automations() []map[string]any {
	return s.store.listAutomations()
}

// State returns one entity.
func (s *Server) State(entityID string) (map[string]any, bool) {
	return s.store.state(entityID)
}

func (s *Server) routes() http.Handler {
	rest := http.NewServeMux()
	rest.HandleFunc("GET /api", s.handleStatus)
	rest.HandleFunc("GET /api/states", s.handleStates)
	rest.HandleFunc("GET /api/states/{entity_id}", s.handleState)
	rest.HandleFunc("POST /api/services/{domain}/{service}", s.handleService)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/websocket", s.handleWebSocket)
	mux.Handle("/", s.restAuth(rest))
	return mux
}

func (s *Server) restAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		down := s.restDown
		s.mu.Unlock()

		if down {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"message": "Service Unavailable"})
			return
		}
		if r.Header.Get("Authorization") != auth.BearerHeader(s.token) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "API running.",
		"version": s.version,
	})
}

func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.states())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	entity, ok := s.store.state(r.PathValue("entity_id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Entity not found"})
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Data should be valid JSON."})
			return
		}
	}

	changed := s.store.callService(ServiceCall{
		Domain:    r.PathValue("domain"),
		Service:   r.PathValue("service"),
		Data:      data,
		Transport: "rest",
	})
	if changed == nil {
		changed = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, changed)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
