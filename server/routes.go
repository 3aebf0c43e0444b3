package server

func (s *Server) initRoutes() {
	// Token exchange and login
	s.RegisterRouteHandler("POST "+RouteAuthToken, ChainMiddleware(s.TokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// Flight operations
	s.RegisterRouteHandler("GET "+RouteFlights, ChainMiddleware(s.ListFlightsHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteFlight, ChainMiddleware(s.GetFlightHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteFlightAction, ChainMiddleware(s.FlightActionHandler(), s.APIMiddleware()...))

	s.RegisterRouteHandler("POST "+RouteEvents, ChainMiddleware(s.EventsHandler(), s.APIMiddleware()...))

	if s.config.IsDev() {
		s.RegisterRouteHandler("GET "+RouteDebugToken, ChainMiddleware(s.DebugTokenHandler(), s.APIMiddleware()...))
	}
	s.RegisterRouteHandler("GET "+RouteInfo, ChainMiddleware(s.InfoHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.RecoverMiddleware))
	s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())
}
