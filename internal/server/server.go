// Package server provides the HTTP transport for the collaboration MCP
// server: JSON-RPC over POST, server-sent events over GET, session
// teardown over DELETE.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/jupyter-rtc/collab-mcp/internal/event"
	"github.com/jupyter-rtc/collab-mcp/internal/eventlog"
	"github.com/jupyter-rtc/collab-mcp/internal/logging"
	"github.com/jupyter-rtc/collab-mcp/internal/session"
	"github.com/jupyter-rtc/collab-mcp/internal/tools"
)

// SessionHeader carries the client's session id on every request.
const SessionHeader = "Mcp-Session-Id"

// broadcastStream is the event-log stream holding events fanned out to
// every session.
const broadcastStream = "broadcast"

// Config holds server configuration.
type Config struct {
	Host              string
	Port              int
	Token             string
	EnableCORS        bool
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:              "127.0.0.1",
		Port:              8080,
		EnableCORS:        true,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // no write timeout, SSE channels stay open
		HeartbeatInterval: 30 * time.Second,
	}
}

// Server is the HTTP server.
type Server struct {
	config   *Config
	router   *chi.Mux
	httpSrv  *http.Server
	sessions *session.Registry
	events   *eventlog.Store
	tools    *tools.Registry
	bus      *event.Bus
	log      zerolog.Logger

	unsubscribe func()
}

// New creates a Server wired to the given registries. It subscribes to
// the bus so collaboration events reach every attached SSE channel.
func New(cfg *Config, sessions *session.Registry, events *eventlog.Store, toolReg *tools.Registry, bus *event.Bus) *Server {
	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		sessions: sessions,
		events:   events,
		tools:    toolReg,
		bus:      bus,
		log:      logging.Component("server"),
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.unsubscribe = bus.SubscribeAll(s.broadcast)

	return s
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Last-Event-ID", SessionHeader},
			ExposedHeaders:   []string{SessionHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	s.router.Use(s.authenticate)
}

// authenticate enforces the shared-token check when a token is
// configured. The Jupyter identity scheme ("Identity.token <t>") and
// plain bearer tokens are both accepted; with no token configured the
// server is open, which is the development default.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.Token == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		var token string
		switch {
		case strings.HasPrefix(header, "Identity.token "):
			token = strings.TrimPrefix(header, "Identity.token ")
		case strings.HasPrefix(header, "Bearer "):
			token = strings.TrimPrefix(header, "Bearer ")
		default:
			writeError(w, http.StatusUnauthorized, "missing or invalid authentication header")
			return
		}

		if token != s.config.Token {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// broadcast stores a bus event under the broadcast stream and forwards it
// to every attached SSE channel.
func (s *Server) broadcast(e event.Event) {
	eventID := s.events.StoreEvent(broadcastStream, map[string]any{
		"type": string(e.Type),
		"data": e.Data,
	})

	for id, emitter := range s.sessions.Emitters() {
		if err := emitter.SendEvent(string(e.Type), e.Data, eventID); err != nil {
			s.log.Debug().Str("sessionID", id).Err(err).Msg("broadcast send failed")
		}
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server, ending every active session
// so attached SSE channels are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.sessions.EndAll()

	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the chi router, used by tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
