package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-token-broker/identity"
	"github.com/jrsteele09/go-token-broker/internal/config"
	"github.com/jrsteele09/go-token-broker/resource"
	"github.com/jrsteele09/go-token-broker/token"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TokenEngine is the part of *token.Engine the HTTP layer uses.
type TokenEngine interface {
	GetValidRecord(ctx context.Context, userID string) (*token.Record, error)
	Authorize(ctx context.Context, code string) (*token.Record, error)
}

// ResourceFetcher relays resource API calls; *resource.Proxy satisfies it.
type ResourceFetcher interface {
	Fetch(ctx context.Context, userID, path string, query url.Values) (*resource.Response, error)
}

// LoginURLer builds the provider's authorization URL; *provider.Client satisfies it.
type LoginURLer interface {
	AuthCodeURL(state string) string
}

// Services are the collaborators behind the routes.
type Services struct {
	Tokens    TokenEngine
	Resources ResourceFetcher
	Login     LoginURLer
	Sessions  *identity.Sessions
}

type Server struct {
	env       string
	mux       *http.ServeMux
	handler   http.Handler
	routes    []string
	config    config.Config
	services  Services
	resolver  identity.Resolver
	pathUsers bool
	log       zerolog.Logger
}

func New(c config.Config, services Services, logger zerolog.Logger) (*Server, error) {
	if services.Tokens == nil || services.Resources == nil || services.Login == nil {
		return nil, fmt.Errorf("[Server New] tokens, resources and login are required")
	}

	resolver, err := identity.FromStrategies(c.GetUserStrategies(), services.Sessions, c.GetDefaultUserID())
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to build user resolver: %w", err)
	}

	s := &Server{
		env:       c.GetEnv(),
		mux:       http.NewServeMux(),
		config:    c,
		services:  services,
		resolver:  resolver,
		pathUsers: identity.HasStrategy(c.GetUserStrategies(), identity.StrategyPath),
		log:       logger,
	}

	s.initRoutes()
	s.logRoutes()
	s.handler = otelhttp.NewHandler(s.mux, c.GetAppName())

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

// Routes lists the registered patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, ok := strings.Cut(route, " ")
		if !ok {
			method, path = "", route
		}
		s.log.Debug().Str("method", method).Str("path", path).Msg("route")
	}
}
