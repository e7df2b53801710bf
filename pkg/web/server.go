// Package web exposes enrollment and authentication over HTTP.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/MrCodeEU/facelogin/pkg/auth"
	"github.com/MrCodeEU/facelogin/pkg/logging"
)

// DefaultMaxBodyBytes limits request bodies when Options leaves it unset.
const DefaultMaxBodyBytes = 10 << 20

// Options configures the HTTP server.
type Options struct {
	Host           string
	Port           int
	AllowedOrigins []string
	MaxBodyBytes   int64
	Version        string
}

// Server is the HTTP API server.
type Server struct {
	service    *auth.Service
	router     *chi.Mux
	httpServer *http.Server
	opts       Options
}

// NewServer creates a server for svc.
func NewServer(svc *auth.Service, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	s := &Server{
		service: svc,
		router:  r,
		opts:    opts,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(CORS(opts.AllowedOrigins))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Get("/health", s.handleHealth)
	r.Get("/users", s.handleListUsers)
	r.Delete("/users/{userID}", s.handleRemoveUser)
	r.Post("/register-face", s.handleRegister)
	r.Post("/verify-face", s.handleVerify(auth.ModeUpload))
	r.Post("/verify-live-face", s.handleVerify(auth.ModeLive))
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	logging.Component("http").Infof("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Component("http").Info("Shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func requestLogger(next http.Handler) http.Handler {
	log := logging.Component("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		log.WithFields(logging.Fields{
			"request_id": chiMiddleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
			"remote":     r.RemoteAddr,
		}).Info("Request handled")
	})
}
