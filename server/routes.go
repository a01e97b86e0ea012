package server

func (s *Server) initRoutes() {
	// SIGN IN
	s.RegisterRouteFunc("GET "+RouteSignIn, s.SignInHandler())
	// form_post providers are answered by FormPostCallbackStage before routing
	s.RegisterRouteFunc("GET "+RouteCallback, s.CallbackHandler())
	s.RegisterRouteFunc("POST "+RouteSignOut, s.SignOutHandler())

	// SESSION
	s.RegisterRouteFunc("GET "+RouteSession, s.SessionHandler())
	s.RegisterRouteFunc("GET "+RouteProviders, s.ProvidersHandler())

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}
