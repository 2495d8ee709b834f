// Package api provides the taxonomy REST API server.
package api

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/audy/taxonomy/core/errors"
	"github.com/audy/taxonomy/core/store"
)

// Server serves the taxonomy HTTP API over a dataset store.
type Server struct {
	cfg    Config
	store  *store.Store
	log    *zap.Logger
	hub    *Hub
	router *http.ServeMux
}

// NewServer builds a server over the given store. The logger must not
// be nil.
func NewServer(cfg Config, st *store.Store, log *zap.Logger) (*Server, error) {
	if err := validateAuthConfig(cfg.Auth); err != nil {
		return nil, errors.Wrap(err, "invalid auth config")
	}

	s := &Server{
		cfg:   cfg,
		store: st,
		log:   log,
		hub:   NewHub(log),
	}
	s.router = s.routes()
	return s, nil
}

// Start runs the WebSocket hub and blocks serving HTTP on the
// configured port.
func (s *Server) Start() error {
	go s.hub.Run()

	s.log.Info("api server starting",
		zap.Int("port", s.cfg.Port),
		zap.String("db", s.cfg.DBPath),
		zap.Bool("auth", s.cfg.Auth.Enabled),
		zap.String("sqlite_driver", store.DriverType()))
	if !s.cfg.Auth.Enabled {
		s.log.Warn("authentication disabled, all requests allowed")
	}

	return http.ListenAndServe(fmt.Sprintf(":%d", s.cfg.Port), s.Handler())
}

// Handler returns the complete middleware-wrapped handler. Exposed for
// tests.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.router
	handler = s.authMiddleware(handler)
	handler = s.corsMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	return handler
}

// routes configures all HTTP routes.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/ranks", s.handleRanks)
	mux.HandleFunc("/v1/ranks/parse", s.handleRankParse)
	mux.HandleFunc("/v1/formats", s.handleFormats)
	mux.HandleFunc("/v1/datasets", s.handleDatasets)
	mux.HandleFunc("/v1/datasets/", s.handleDatasetByName)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return mux
}

// loggingMiddleware logs each request at debug with method and path.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr))
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware applies CORS headers. An empty AllowedOrigins list
// allows all origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if len(s.cfg.AllowedOrigins) == 0 {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				for _, allowed := range s.cfg.AllowedOrigins {
					if origin == allowed {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						break
					}
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
