package oauthmodel

// ProviderTokenBundle is the normalised result of a provider code exchange. It lives
// only inside a sealed code payload until the code is redeemed.
type ProviderTokenBundle struct {
	Provider        ProviderType `json:"provider"`
	IDToken         string       `json:"id_token"`
	AccessToken     string       `json:"access_token,omitempty"`
	ProviderSubject string       `json:"provider_subject,omitempty"`
	TokenType       string       `json:"token_type"`
	ExpiresIn       int          `json:"expires_in"`
}

// TokenResponse is the unified body returned from the /token endpoint for every provider.
type TokenResponse struct {
	// Provider is the relay provider name.
	// Example: "google"
	Provider ProviderType `json:"provider"`

	// IdToken is the provider's OpenID Connect ID token, passed through unchanged.
	// Usage: Client validates and extracts user claims (sub, email, name, etc.)
	IdToken string `json:"id_token"`

	// AccessToken is the provider's access token, passed through unchanged.
	// Note: null when the provider did not return one
	AccessToken *string `json:"access_token"`

	// ProviderID is the identity platform provider id.
	// Example: "apple.com" or "google.com"
	ProviderID string `json:"provider_id"`

	// ProviderSubject is the "sub" claim of the ID token, the user's stable id at the provider.
	ProviderSubject *string `json:"provider_subject,omitempty"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the provider tokens.
	// Example: 3600
	ExpiresIn int `json:"expires_in"`

	// CustomToken is a Firebase custom token for the federated account.
	// Only present: When use_custom_token=true was sent and federation succeeded
	// Usage: signInWithCustomToken in the Firebase client SDK
	CustomToken *string `json:"custom_token,omitempty"`
}
