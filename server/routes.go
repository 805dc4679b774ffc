package server

import (
	"net/http"

	"github.com/jrsteele09/go-token-broker/identity"
	"github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/internal/metrics"
)

func (s *Server) initRoutes() {
	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.BrowserMiddleware()...))

	// API routes for the user behind the session (or the default user)
	s.registerAPIRoutes(RouteAPI, s.resolver)
	if s.pathUsers {
		s.registerAPIRoutes(RouteAPIUser, identity.PathValue(identity.PathUserID))
	}
	// CORS preflights for every API route, and JSON 404s for unknown ones
	s.RegisterRouteHandler(RouteAPIRoot, ChainMiddleware(s.apiFallback, s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())
}

func (s *Server) registerAPIRoutes(prefix string, users identity.Resolver) {
	s.RegisterRouteHandler("GET "+prefix+RouteActivities, ChainMiddleware(s.ActivitiesHandler(users), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+prefix+RouteActivity, ChainMiddleware(s.ActivityHandler(users), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+prefix+RouteAthlete, ChainMiddleware(s.AthleteHandler(users), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+prefix+RouteAthleteStats, ChainMiddleware(s.AthleteStatsHandler(users), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+prefix+RouteToken, ChainMiddleware(s.TokenHandler(users), s.APIMiddleware()...))
}

func (s *Server) apiFallback(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeError(w, r, errors.Kindf(errors.ErrNotFound, nil, "%s %s", r.Method, r.URL.Path))
}
