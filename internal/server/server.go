// Package server exposes artifact generation over an authenticated JSON API.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vpncert/internal/crashreport"
	"vpncert/internal/session"
	"vpncert/internal/version"
	"vpncert/internal/vpn"
)

// CrashLister returns recently captured failures, newest first.
type CrashLister interface {
	List(limit int) ([]crashreport.Report, error)
}

// Options wires the server's collaborators. Artifacts and Sessions are required.
type Options struct {
	Artifacts *vpn.Manager
	Sessions  *session.Manager
	Crashes   CrashLister
	Logger    log.Interface
}

// Server handles HTTP requests.
type Server struct {
	artifacts *vpn.Manager
	sessions  *session.Manager
	crashes   CrashLister
	log       log.Interface
}

// New creates an HTTP server.
func New(opts Options) (*Server, error) {
	if opts.Artifacts == nil {
		return nil, errors.New("artifact manager is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Log
	}
	return &Server{
		artifacts: opts.Artifacts,
		sessions:  opts.Sessions,
		crashes:   opts.Crashes,
		log:       logger,
	}, nil
}

// Router constructs the http.Handler with all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Get("/version", s.handleVersion)
		api.Post("/sessions", s.handleLogin)

		api.Group(func(authed chi.Router) {
			authed.Use(s.sessions.Middleware)
			authed.Delete("/sessions", s.handleLogout)
			authed.Post("/artifacts", s.handleGenerate)
			authed.Delete("/artifacts", s.handleDeleteArtifact)
			authed.Get("/state", s.handleState)
			authed.Get("/crashes", s.handleListCrashes)
		})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.WithFields(log.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start).String(),
			}).Debug("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Current())
}
