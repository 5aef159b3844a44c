// Package api provides the termdoc REST API and live editing server.
package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/termdoc/core/cache"
	"github.com/FocuswithJustin/termdoc/internal/config"
	"github.com/FocuswithJustin/termdoc/internal/logging"
	"github.com/FocuswithJustin/termdoc/internal/server"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Server is the HTTP front end over a document store.
type Server struct {
	// Version is reported by / and /health.
	Version string

	cfg      config.Config
	docs     Documents
	sessions *Registry
	metrics  *Metrics
	parses   *cache.ParseCache
	limiter  *RateLimiter
	upgrader websocket.Upgrader
	started  time.Time
}

// New creates a server. cfg should already be validated.
func New(cfg config.Config, docs Documents) *Server {
	s := &Server{
		Version:  "dev",
		cfg:      cfg,
		docs:     docs,
		sessions: NewRegistry(cfg.Session.MaxSessions),
		parses:   cache.NewParseCache(cache.DefaultConfig()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
		},
		started: time.Now(),
	}
	s.metrics = NewMetrics(s.parses)
	if cfg.RateLimit.RequestsPerMinute > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit)
	}
	return s
}

// routes configures all HTTP routes.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("POST /convert/parse", s.handleParse)
	mux.HandleFunc("POST /convert/render", s.handleRender)
	mux.HandleFunc("GET /documents", s.handleListDocuments)
	mux.HandleFunc("POST /documents", s.handleCreateDocument)
	mux.HandleFunc("GET /documents/{id}", s.handleGetDocument)
	mux.HandleFunc("PUT /documents/{id}", s.handleUpdateDocument)
	mux.HandleFunc("DELETE /documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("GET /documents/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /session", s.handleSession)

	return mux
}

// Handler returns the routes wrapped in the middleware chain, outermost
// first: request IDs, request logging, CORS, security headers, auth and
// rate limiting, then metrics around the mux.
func (s *Server) Handler() http.Handler {
	mw := []func(http.Handler) http.Handler{
		logging.RequestIDMiddleware,
		logging.LoggingMiddleware,
		func(next http.Handler) http.Handler {
			return server.CORSMiddlewareWithConfig(server.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}, next)
		},
		server.SecurityHeaders(server.APICSPConfig()),
		AuthMiddleware(s.cfg.Auth),
	}
	if s.limiter != nil {
		mw = append(mw, s.limiter.Middleware)
	}
	return server.Chain(s.metrics.Middleware(s.routes()), mw...)
}

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully and closes open sessions.
func (s *Server) ListenAndServe(ctx context.Context) error {
	cfg := s.cfg
	if cfg.TLS.Enabled {
		for _, f := range []string{cfg.TLS.CertFile, cfg.TLS.KeyFile} {
			if _, err := os.Stat(f); err != nil {
				return err
			}
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.limiter != nil {
		go s.limiter.Run(ctx)
	}
	s.logStartup()

	errc := make(chan error, 1)
	go func() {
		if cfg.TLS.Enabled {
			errc <- srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			errc <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down", "sessions", s.sessions.Len())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.sessions.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logStartup() {
	cfg := s.cfg
	protocol, wsProtocol := "http", "ws"
	if cfg.TLS.Enabled {
		protocol, wsProtocol = "https", "wss"
		logging.Info("TLS enabled", "cert_file", cfg.TLS.CertFile)
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}
	logging.ServerStartup("termdoc", protocol, cfg.Port,
		"websocket_protocol", wsProtocol,
		"database", cfg.Database,
		"max_sessions", cfg.Session.MaxSessions)

	if len(cfg.AllowedOrigins) > 0 {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "restricted",
			"allowed_origins_count", len(cfg.AllowedOrigins))
	} else {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "permissive",
			"note", "allowing all origins (*) - consider restricting for production")
	}
	logging.SecurityEvent("authentication_configured", "api", "enabled", cfg.Auth.Enabled)
	if s.limiter != nil {
		logging.Info("rate limiting enabled",
			"requests_per_minute", cfg.RateLimit.RequestsPerMinute,
			"burst_size", s.limiter.cfg.Burst)
	}
}
