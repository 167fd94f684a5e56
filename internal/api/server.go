// Package api exposes the calculator over HTTP: catalog lookups, single duels,
// read-only scenarios and live brawl sessions over websocket.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/udisondev/polycalc/internal/config"
	"github.com/udisondev/polycalc/internal/data"
	"github.com/udisondev/polycalc/internal/db"
	"github.com/udisondev/polycalc/internal/scenario"
)

// ScenarioStore persists shared scenarios. Implemented by db.ScenarioRepository.
type ScenarioStore interface {
	Save(ctx context.Context, sc scenario.Scenario) (string, error)
	Get(ctx context.Context, code string) (*scenario.Scenario, error)
	ListRecent(ctx context.Context, limit int) ([]db.ScenarioInfo, error)
}

// ServerOption is a functional option for Server configuration.
type ServerOption func(*Server)

// WithStore enables the scenario endpoints. Without a store they answer 503.
func WithStore(store ScenarioStore) ServerOption {
	return func(s *Server) {
		s.store = store
	}
}

// WithSessionManager sets a custom SessionManager (useful for testing).
func WithSessionManager(sm *SessionManager) ServerOption {
	return func(s *Server) {
		s.sessions = sm
	}
}

// Server is the polycalcd HTTP server.
type Server struct {
	cfg      config.Server
	catalog  *data.Catalog
	store    ScenarioStore
	sessions *SessionManager
	router   *mux.Router

	listener net.Listener
	mu       sync.Mutex
}

// NewServer creates a Server over catalog.
func NewServer(cfg config.Server, catalog *data.Catalog, opts ...ServerOption) *Server {
	s := &Server{
		cfg:     cfg,
		catalog: catalog,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.sessions == nil {
		s.sessions = NewSessionManager(cfg.MaxSessions)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	apiRouter.HandleFunc("/versions", s.handleVersions).Methods(http.MethodGet)
	apiRouter.HandleFunc("/versions/{version}/units", s.handleUnits).Methods(http.MethodGet)
	apiRouter.HandleFunc("/duel", s.handleDuel).Methods(http.MethodPost)
	apiRouter.HandleFunc("/brawl", s.handleBrawl).Methods(http.MethodPost)
	apiRouter.HandleFunc("/scenarios", s.handleSaveScenario).Methods(http.MethodPost)
	apiRouter.HandleFunc("/scenarios", s.handleListScenarios).Methods(http.MethodGet)
	apiRouter.HandleFunc("/scenarios/{code}", s.handleGetScenario).Methods(http.MethodGet)

	r.HandleFunc("/ws/brawl", s.handleBrawlSocket)
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions возвращает менеджер websocket-сессий.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Addr возвращает адрес, на котором слушает сервер.
// Возвращает nil если сервер ещё не запущен.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run listens on cfg.Addr() and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve принимает готовый listener. Используется для тестирования с произвольным listener.
// On ctx cancellation the server drains for cfg.ShutdownTimeout; open websocket
// sessions are closed through the request context.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		shutdownErr <- srv.Shutdown(shutdownCtx)
	}()

	slog.Info("http server started", "address", ln.Addr())
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}

	if err := <-shutdownErr; err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	slog.Info("http server stopped")
	return nil
}
