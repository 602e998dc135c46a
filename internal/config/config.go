package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	CorsConfig
	RelayConfig
	ProvidersConfig
	FederationConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
	GetAppleDomainAssociation() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Relay
	Providers
	Federation
	Store
}

// New reads the process configuration from the environment. Configuration is immutable
// once returned; an enabled provider or federation setup with missing values is an error.
func New() (Config, error) {
	c := mainConfig{}
	if err := env.Parse(&c.Relay); err != nil {
		return nil, fmt.Errorf("[config New] relay: %w", err)
	}
	if err := env.Parse(&c.Providers); err != nil {
		return nil, fmt.Errorf("[config New] providers: %w", err)
	}
	if err := env.Parse(&c.Federation); err != nil {
		return nil, fmt.Errorf("[config New] federation: %w", err)
	}
	if err := env.Parse(&c.Store); err != nil {
		return nil, fmt.Errorf("[config New] store: %w", err)
	}
	c.Providers.normalise()

	if err := c.Providers.Validate(); err != nil {
		return nil, fmt.Errorf("[config New] %w", err)
	}
	if err := c.Federation.Validate(); err != nil {
		return nil, fmt.Errorf("[config New] %w", err)
	}
	if err := c.Relay.Validate(); err != nil {
		return nil, fmt.Errorf("[config New] %w", err)
	}
	return c, nil
}
