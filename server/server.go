package server

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-relay/internal/config"
	"github.com/jrsteele09/go-auth-relay/relay"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env          string // Environment (e.g., "DEV", "PROD")
	mux          *http.ServeMux
	routes       []string
	config       config.Config
	relay        *relay.Service
	callbackPage *template.Template
}

func New(config config.Config, relayService *relay.Service) (*Server, error) {
	if config == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if relayService == nil {
		return nil, errors.New("[Server New] relay service is required")
	}

	callbackPage, err := ParseTemplate(authCallbackTemplate)
	if err != nil {
		return nil, errors.Join(errors.New("[Server New] failed to parse callback template"), err)
	}

	s := &Server{
		env:          config.GetEnv(),
		mux:          http.NewServeMux(),
		config:       config,
		relay:        relayService,
		callbackPage: callbackPage,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("Route registered")
		} else {
			log.Debug().Str("path", parts[0]).Msg("Route registered")
		}
	}
}
