package config

import (
	"errors"
	"fmt"
	"strings"
)

type ProvidersConfig interface {
	GetApple() AppleCredentials
	GetGoogle() GoogleCredentials
}

// AppleCredentials are the Sign in with Apple settings. The private key is the
// contents of the .p8 file, given inline or through a file path.
type AppleCredentials struct {
	ClientID       string `env:"APPLE_CLIENT_ID"`
	TeamID         string `env:"APPLE_TEAM_ID"`
	KeyID          string `env:"APPLE_KEY_ID"`
	PrivateKey     string `env:"APPLE_PRIVATE_KEY"`
	PrivateKeyFile string `env:"APPLE_PRIVATE_KEY_PATH,file"`
}

func (a AppleCredentials) Enabled() bool {
	return a.ClientID != ""
}

type GoogleCredentials struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
}

func (g GoogleCredentials) Enabled() bool {
	return g.ClientID != ""
}

type Providers struct {
	Apple  AppleCredentials
	Google GoogleCredentials
}

var _ ProvidersConfig = Providers{}

func (p Providers) GetApple() AppleCredentials {
	return p.Apple
}

func (p Providers) GetGoogle() GoogleCredentials {
	return p.Google
}

// normalise resolves the Apple key source and restores newlines escaped by env files.
func (p *Providers) normalise() {
	if p.Apple.PrivateKey == "" {
		p.Apple.PrivateKey = p.Apple.PrivateKeyFile
	}
	p.Apple.PrivateKeyFile = ""
	p.Apple.PrivateKey = strings.ReplaceAll(p.Apple.PrivateKey, `\n`, "\n")
}

// Validate reports every missing value for providers that have a client id configured.
func (p Providers) Validate() error {
	var errs []error
	if p.Apple.Enabled() {
		if p.Apple.TeamID == "" {
			errs = append(errs, fmt.Errorf("APPLE_TEAM_ID is required when APPLE_CLIENT_ID is set"))
		}
		if p.Apple.KeyID == "" {
			errs = append(errs, fmt.Errorf("APPLE_KEY_ID is required when APPLE_CLIENT_ID is set"))
		}
		if p.Apple.PrivateKey == "" {
			errs = append(errs, fmt.Errorf("APPLE_PRIVATE_KEY or APPLE_PRIVATE_KEY_PATH is required when APPLE_CLIENT_ID is set"))
		}
	}
	if p.Google.Enabled() && p.Google.ClientSecret == "" {
		errs = append(errs, fmt.Errorf("GOOGLE_CLIENT_SECRET is required when GOOGLE_CLIENT_ID is set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("providers: %w", errors.Join(errs...))
	}
	return nil
}
