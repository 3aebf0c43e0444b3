package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteAuthToken  = "/api/auth/token"
	RouteAuthLogin  = "/api/auth/login"
	RouteAuthLogout = "/api/auth/logout"

	// Flight operations passthrough
	RouteFlights      = "/api/flights"
	RouteFlight       = "/api/flights/{id}"
	RouteFlightAction = "/api/flights/{id}/{action}"

	RouteEvents = "/api/events"

	// Operational Routes
	RouteDebugToken = "/api/debug/token"
	RouteInfo       = "/api/info"
	RouteHealth     = "/health"
	RouteMetrics    = "/metrics"
)

// upstreamFlightsPath is the flights collection on the flight-operations API.
const upstreamFlightsPath = "flights"
