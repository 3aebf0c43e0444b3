package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-flight-proxy/internal/config"
	"github.com/jrsteele09/go-flight-proxy/metrics"
	"github.com/jrsteele09/go-flight-proxy/server/authflowrepo"
	"github.com/jrsteele09/go-flight-proxy/token"
	"github.com/jrsteele09/go-flight-proxy/upstream"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	handler   http.Handler
	routes    []string
	config    config.Config
	tokens    *token.Manager
	forwarder *upstream.Forwarder
	authState authflowrepo.Repo
	metrics   *metrics.Metrics
}

func New(config config.Config, tokens *token.Manager, forwarder *upstream.Forwarder, authStateRepo authflowrepo.Repo, m *metrics.Metrics) (*Server, error) {
	if tokens == nil || forwarder == nil {
		return nil, fmt.Errorf("[Server New] token manager and forwarder are required")
	}
	if authStateRepo == nil {
		authStateRepo = authflowrepo.NewInMemoryRepo(config.GetPKCEStateTTL())
	}
	if m == nil {
		m = metrics.New()
	}

	s := &Server{
		mux:       http.NewServeMux(),
		config:    config,
		tokens:    tokens,
		forwarder: forwarder,
		authState: authStateRepo,
		metrics:   m,
	}
	s.env = config.GetEnv()

	// CORS wraps the whole mux so preflight requests are answered before routing.
	// Browsers refuse credentials with a wildcard origin, so "*" turns them off.
	origins := config.GetAllowedOrigins()
	s.handler = cors.New(cors.Options{
		AllowedOrigins:   origins.List(),
		AllowedMethods:   config.GetAllowedMethods(),
		AllowedHeaders:   config.GetAllowedHeaders(),
		ExposedHeaders:   []string{headerRequestID},
		AllowCredentials: !origins.IsAllowedOrigin("*"),
		MaxAge:           86400,
	}).Handler(s.mux)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes returns the registered patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colouredMethod(method), path)
}

func logError(method, path, error string) {
	log.Error().Msgf("[%-19s] %s %s", colouredMethod(method), path, Red+error+ResetColor)
}

func colouredMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
