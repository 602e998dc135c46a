package config

import "fmt"

type FederationConfig interface {
	GetFederation() Federation
	FederationEnabled() bool
}

// Federation configures the Firebase bridge. Credentials are a service account JSON
// document, given inline (FIREBASE_CREDENTIALS_JSON) or as a file path.
type Federation struct {
	APIKey              string `env:"FIREBASE_API_KEY"`
	CredentialsJSON     string `env:"FIREBASE_CREDENTIALS_JSON"`
	CredentialsFile     string `env:"GOOGLE_APPLICATION_CREDENTIALS,file"`
	IdentityToolkitURL  string `env:"FIREBASE_IDENTITY_TOOLKIT_URL" envDefault:"https://identitytoolkit.googleapis.com"`
	RequestURI          string `env:"FIREBASE_REQUEST_URI" envDefault:"http://localhost"`
	CustomTokenAudience string `env:"FIREBASE_CUSTOM_TOKEN_AUDIENCE" envDefault:"https://identitytoolkit.googleapis.com/google.identity.identitytoolkit.v1.IdentityToolkit"`
}

var _ FederationConfig = Federation{}

func (f Federation) GetFederation() Federation {
	return f
}

// Credentials returns the service account JSON, preferring the inline value.
func (f Federation) Credentials() []byte {
	if f.CredentialsJSON != "" {
		return []byte(f.CredentialsJSON)
	}
	if f.CredentialsFile != "" {
		return []byte(f.CredentialsFile)
	}
	return nil
}

func (f Federation) FederationEnabled() bool {
	return f.APIKey != "" && len(f.Credentials()) > 0
}

// Validate rejects a half configured bridge; a fully absent one simply disables federation.
func (f Federation) Validate() error {
	hasKey := f.APIKey != ""
	hasCreds := len(f.Credentials()) > 0
	if hasKey != hasCreds {
		return fmt.Errorf("federation: FIREBASE_API_KEY and service account credentials must be set together")
	}
	return nil
}
