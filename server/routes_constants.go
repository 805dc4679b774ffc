package server

import "github.com/jrsteele09/go-token-broker/identity"

// Route path constants
const (
	// Auth Routes
	RouteLogin    = "/login"
	RouteCallback = "/callback"
	RouteLogout   = "/logout"

	// API Routes, relative to RouteAPI or RouteAPIUser
	RouteAPI          = "/api"
	RouteAPIUser      = "/api/users/{" + identity.PathUserID + "}"
	RouteAPIRoot      = "/api/"
	RouteActivities   = "/activities"
	RouteActivity     = "/activities/{id}"
	RouteAthlete      = "/athlete"
	RouteAthleteStats = "/athlete/stats"
	RouteToken        = "/token"

	// Operational Routes
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)

// Resource API paths, relative to API_BASE_URL
const (
	upstreamActivities   = "/athlete/activities"
	upstreamActivity     = "/activities/"
	upstreamAthlete      = "/athlete"
	upstreamAthletesRoot = "/athletes/"
)
