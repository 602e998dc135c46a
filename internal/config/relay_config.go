package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

type RelayConfig interface {
	GetSessionTTL() time.Duration
	GetCodeTTL() time.Duration
	GetDefaultExpiresIn() int
	GetAllowedRedirectURIs() []string
	GetVerifyIDTokens() bool
	GetCodeSealingKey() []byte
}

// Relay holds the lifecycle settings for auth sessions and one-time codes.
type Relay struct {
	SessionTTL          time.Duration `env:"RELAY_SESSION_TTL" envDefault:"300s"`
	CodeTTL             time.Duration `env:"RELAY_CODE_TTL" envDefault:"300s"`
	DefaultExpiresIn    int           `env:"RELAY_DEFAULT_EXPIRES_IN" envDefault:"3600"`
	AllowedRedirectURIs []string      `env:"RELAY_ALLOWED_REDIRECT_URIS" envSeparator:","`
	VerifyIDTokens      bool          `env:"RELAY_VERIFY_ID_TOKENS" envDefault:"false"`
	CodeSealingKey      string        `env:"RELAY_CODE_SEALING_KEY"`
}

var _ RelayConfig = Relay{}

func (r Relay) GetSessionTTL() time.Duration {
	return r.SessionTTL
}

func (r Relay) GetCodeTTL() time.Duration {
	return r.CodeTTL
}

func (r Relay) GetDefaultExpiresIn() int {
	return r.DefaultExpiresIn
}

// GetAllowedRedirectURIs returns the client redirect URIs accepted at /authorize. Empty means any.
func (r Relay) GetAllowedRedirectURIs() []string {
	uris := make([]string, 0, len(r.AllowedRedirectURIs))
	for _, u := range r.AllowedRedirectURIs {
		if u = strings.TrimSpace(u); u != "" {
			uris = append(uris, u)
		}
	}
	return uris
}

func (r Relay) GetVerifyIDTokens() bool {
	return r.VerifyIDTokens
}

// GetCodeSealingKey returns the decoded master secret for code payloads, or nil when unset.
func (r Relay) GetCodeSealingKey() []byte {
	if r.CodeSealingKey == "" {
		return nil
	}
	key, err := base64.StdEncoding.DecodeString(r.CodeSealingKey)
	if err != nil {
		return nil
	}
	return key
}

func (r Relay) Validate() error {
	if r.SessionTTL <= 0 {
		return fmt.Errorf("RELAY_SESSION_TTL must be positive")
	}
	if r.CodeTTL <= 0 {
		return fmt.Errorf("RELAY_CODE_TTL must be positive")
	}
	if r.CodeSealingKey != "" {
		key, err := base64.StdEncoding.DecodeString(r.CodeSealingKey)
		if err != nil {
			return fmt.Errorf("RELAY_CODE_SEALING_KEY is not valid base64")
		}
		if len(key) < 32 {
			return fmt.Errorf("RELAY_CODE_SEALING_KEY must decode to at least 32 bytes")
		}
	}
	return nil
}
