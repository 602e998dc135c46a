package oauthmodel

// TokenRequest holds the form body of POST /v1/auth/token.
type TokenRequest struct {
	// GrantType must be "authorization_code".
	// Required: Yes
	GrantType GrantType

	// Code is the relay code received on the client redirect.
	// Required: Yes
	// Usage: Redeemed once, then becomes invalid
	Code string

	// RedirectURI must equal the redirect_uri sent to /authorize for this flow.
	// Required: Yes
	RedirectURI string

	// UseCustomToken asks the relay to federate the provider tokens into a Firebase
	// custom token. Federation failure does not fail the request.
	// Required: No
	UseCustomToken bool
}
