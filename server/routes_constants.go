package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Relay Routes
	RouteAuthorize = "/v1/auth/authorize"
	RouteToken     = "/v1/auth/token"

	// Provider Callback Routes (must match providers.CallbackPath)
	RouteAppleCallback  = "/v1/auth/callback/apple"
	RouteGoogleCallback = "/v1/auth/callback/google"

	// Well-known Routes
	RouteAppleDomainAssociation = "/.well-known/apple-developer-domain-association.txt"

	// Operational Routes
	RouteHealth = "/healthz"
)
