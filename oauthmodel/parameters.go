package oauthmodel

// AuthorizeRequest holds the query parameters of GET /v1/auth/authorize.
type AuthorizeRequest struct {
	// Provider selects the upstream identity provider.
	// Required: Yes
	// Example: "google" or "apple"
	Provider ProviderType

	// RedirectURI is where the client wants the relay code delivered.
	// Required: Yes
	// Example: "app://cb" or "https://myapp.com/callback"
	// Validated against: RELAY_ALLOWED_REDIRECT_URIS when configured
	RedirectURI string

	// State is an opaque client value echoed back with the relay code.
	// Required: No
	// Note: this is not the state sent to the provider; that is the session id
	State string
}

// CallbackParams are the fields a provider delivers to the relay callback, either as
// form fields (Apple) or query parameters (Google).
type CallbackParams struct {
	// Code is the provider authorization code.
	Code string

	// State is the relay session id that was embedded in the authorize URL.
	State string

	// Error is the OAuth error parameter, e.g. "access_denied" when the user cancelled.
	Error string

	// ErrorDescription is the optional human readable text that accompanies Error.
	ErrorDescription string
}

// CallbackResult is what the client receives after a successful callback.
type CallbackResult struct {
	// Code is the one-time relay code to redeem at the token endpoint.
	Code string

	// RedirectURI is the client redirect URI recorded at authorize time.
	RedirectURI string

	// State is the client state recorded at authorize time, nil when none was sent.
	State *string
}
