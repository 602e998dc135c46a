package server

import (
	"github.com/jrsteele09/go-auth-relay/oauthmodel"
)

func (s *Server) initRoutes() {
	// Relay API routes
	s.RegisterRouteHandler("GET "+RouteAuthorize, ChainMiddleware(s.Authorize(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteToken, ChainMiddleware(s.Token(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteToken, ChainMiddleware(s.Token(), s.APIMiddleware()...))

	// Provider callbacks. Apple posts the response as a form (response_mode=form_post),
	// Google redirects with query parameters.
	s.RegisterRouteHandler("POST "+RouteAppleCallback, ChainMiddleware(s.ProviderCallback(oauthmodel.AppleProvider), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteGoogleCallback, ChainMiddleware(s.ProviderCallback(oauthmodel.GoogleProvider), s.HTMLMiddleWare()...))

	s.RegisterRouteHandler("GET "+RouteAppleDomainAssociation, ChainMiddleware(s.AppleDomainAssociation(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc("GET "+RouteHealth, s.Health())
}
