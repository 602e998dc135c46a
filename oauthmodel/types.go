package oauthmodel

// ProviderType identifies an upstream identity provider the relay fronts.
type ProviderType string

const (
	// AppleProvider is Sign in with Apple.
	// Exchange: signed ES256 client assertion used as client_secret
	// Callback: POST form fields (response_mode=form_post)
	AppleProvider ProviderType = "apple"

	// GoogleProvider is Google Sign-In.
	// Exchange: static client secret
	// Callback: GET query parameters
	GoogleProvider ProviderType = "google"
)

// Domain returns the provider id used by Firebase and returned to clients as provider_id.
func (p ProviderType) Domain() string {
	switch p {
	case AppleProvider:
		return "apple.com"
	case GoogleProvider:
		return "google.com"
	}
	return ""
}

func (p ProviderType) Valid() bool {
	return p.Domain() != ""
}

func (p ProviderType) String() string {
	return string(p)
}

// ResponseModeType denotes how the provider returns the authorization response to the relay callback.
type ResponseModeType string

const (
	// QueryResponseMode returns parameters in the URL query string.
	// Example: https://api.example.com/v1/auth/callback/google?code=ABC123&state=xyz
	QueryResponseMode ResponseModeType = "query"

	// FormPostResponseMode returns parameters via HTTP POST with an auto-submitting HTML form.
	// Required by Apple whenever name or email scopes are requested.
	FormPostResponseMode ResponseModeType = "form_post"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges a relay code for the provider tokens.
	// Token request includes: code, redirect_uri, use_custom_token (optional)
	// Returns: id_token, access_token, custom_token (if requested and federation succeeded)
	AuthorizationCodeGrant GrantType = "authorization_code"
)

// BearerTokenType is the only token_type the relay returns.
const BearerTokenType = "Bearer"
