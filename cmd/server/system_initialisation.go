package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-relay/codes"
	"github.com/jrsteele09/go-auth-relay/ephemeral"
	"github.com/jrsteele09/go-auth-relay/federation"
	"github.com/jrsteele09/go-auth-relay/internal/config"
	apperrors "github.com/jrsteele09/go-auth-relay/internal/errors"
	"github.com/jrsteele09/go-auth-relay/oauthmodel"
	"github.com/jrsteele09/go-auth-relay/providers"
	"github.com/jrsteele09/go-auth-relay/relay"
	"github.com/jrsteele09/go-auth-relay/sessions"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const purgeInterval = time.Minute

// system is everything built from configuration at startup.
type system struct {
	relay *relay.Service
	close func()
}

// initialiseSystem builds the stores, provider adapters, federation bridge and relay
// service from c. The returned close func stops background work and releases clients.
func initialiseSystem(ctx context.Context, c config.Config) (*system, error) {
	stores, closeStores, err := initialiseStores(ctx, c)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[initialiseSystem] stores")
	}

	sealer, err := initialiseSealer(c)
	if err != nil {
		closeStores()
		return nil, apperrors.Wrapf(err, "[initialiseSystem] sealer")
	}

	registry, err := initialiseProviders(ctx, c)
	if err != nil {
		closeStores()
		return nil, apperrors.Wrapf(err, "[initialiseSystem] providers")
	}

	options := []relay.ServiceOption{
		relay.WithSessionTTL(c.GetSessionTTL()),
		relay.WithCodeTTL(c.GetCodeTTL()),
		relay.WithAllowedRedirectURIs(c.GetAllowedRedirectURIs()),
	}
	if c.FederationEnabled() {
		bridge, err := initialiseFederation(c)
		if err != nil {
			closeStores()
			return nil, apperrors.Wrapf(err, "[initialiseSystem] federation")
		}
		options = append(options, relay.WithFederator(bridge))
	}

	service, err := relay.NewService(stores, registry, sealer, options...)
	if err != nil {
		closeStores()
		return nil, apperrors.Wrapf(err, "[initialiseSystem] relay")
	}

	log.Info().
		Str("base_url", c.GetBaseURL()).
		Bool("apple", c.GetApple().Enabled()).
		Bool("google", c.GetGoogle().Enabled()).
		Bool("federation", service.FederationEnabled()).
		Bool("redis", c.UseRedis()).
		Dur("session_ttl", c.GetSessionTTL()).
		Dur("code_ttl", c.GetCodeTTL()).
		Msg("Relay configured")
	if c.GetApple().Enabled() {
		log.Info().Str("callback", providers.CallbackURL(c.GetBaseURL(), oauthmodel.AppleProvider)).Msg("Apple callback URL")
	}
	if c.GetGoogle().Enabled() {
		log.Info().Str("callback", providers.CallbackURL(c.GetBaseURL(), oauthmodel.GoogleProvider)).Msg("Google callback URL")
	}

	return &system{relay: service, close: closeStores}, nil
}

// initialiseStores uses Redis when REDIS_ADDR is set, otherwise in-memory stores with a
// janitor that drops expired entries.
func initialiseStores(ctx context.Context, c config.Config) (relay.Stores, func(), error) {
	if c.UseRedis() {
		client := redis.NewClient(&redis.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return relay.Stores{}, nil, fmt.Errorf("redis ping %s: %w", c.GetRedisAddr(), err)
		}
		stores := relay.Stores{
			Sessions: ephemeral.NewRedisRepo[sessions.Session](client, sessions.RedisKeyPrefix),
			Codes:    ephemeral.NewRedisRepo[codes.Grant](client, codes.RedisKeyPrefix),
		}
		return stores, func() { _ = client.Close() }, nil
	}

	sessionRepo := ephemeral.NewInMemoryRepo[sessions.Session]()
	codeRepo := ephemeral.NewInMemoryRepo[codes.Grant]()
	janitorCtx, cancel := context.WithCancel(ctx)
	go purgeExpired(janitorCtx, purgeInterval, sessionRepo, codeRepo)

	log.Warn().Msg("REDIS_ADDR not set, sessions and codes are held in memory and lost on restart")
	return relay.Stores{Sessions: sessionRepo, Codes: codeRepo}, cancel, nil
}

type purger interface {
	PurgeExpired() int
}

func purgeExpired(ctx context.Context, interval time.Duration, repos ...purger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged := 0
			for _, r := range repos {
				purged += r.PurgeExpired()
			}
			if purged > 0 {
				log.Debug().Int("purged", purged).Msg("Expired entries removed")
			}
		}
	}
}

// initialiseSealer uses RELAY_CODE_SEALING_KEY when set. A generated key is only valid
// for this process, so it cannot be shared between replicas.
func initialiseSealer(c config.Config) (*codes.Sealer, error) {
	key := c.GetCodeSealingKey()
	if key == nil {
		if c.UseRedis() {
			log.Warn().Msg("RELAY_CODE_SEALING_KEY not set, codes cannot be redeemed by other replicas")
		}
		generated, err := codes.GenerateMasterKey()
		if err != nil {
			return nil, err
		}
		key = generated
	}
	return codes.NewSealer(key)
}

func initialiseProviders(ctx context.Context, c config.Config) (*providers.Registry, error) {
	baseURL := c.GetBaseURL()
	apple := c.GetApple()
	google := c.GetGoogle()

	appleOpts := []providers.Option{providers.WithDefaultExpiresIn(c.GetDefaultExpiresIn())}
	googleOpts := []providers.Option{providers.WithDefaultExpiresIn(c.GetDefaultExpiresIn())}
	if c.GetVerifyIDTokens() {
		if apple.Enabled() {
			appleOpts = append(appleOpts, providers.WithVerifier(
				providers.NewRemoteOIDCVerifier(ctx, providers.AppleIssuer, providers.AppleJWKSURL, apple.ClientID)))
		}
		if google.Enabled() {
			googleOpts = append(googleOpts, providers.WithVerifier(
				providers.NewRemoteOIDCVerifier(ctx, providers.GoogleIssuer, providers.GoogleJWKSURL, google.ClientID)))
		}
	}

	appleAdapter, err := providers.NewSignedAssertionExchange(providers.AppleSettings{
		ClientID:      apple.ClientID,
		TeamID:        apple.TeamID,
		KeyID:         apple.KeyID,
		PrivateKeyPEM: apple.PrivateKey,
		CallbackURL:   providers.CallbackURL(baseURL, oauthmodel.AppleProvider),
	}, nil, appleOpts...)
	if err != nil {
		return nil, err
	}
	googleAdapter := providers.NewRedirectExchange(providers.GoogleSettings{
		ClientID:     google.ClientID,
		ClientSecret: google.ClientSecret,
		CallbackURL:  providers.CallbackURL(baseURL, oauthmodel.GoogleProvider),
	}, googleOpts...)

	return providers.NewRegistry(appleAdapter, googleAdapter), nil
}

func initialiseFederation(c config.Config) (*federation.Bridge, error) {
	f := c.GetFederation()
	minter, err := federation.NewCustomTokenMinter(f.Credentials(), federation.WithAudience(f.CustomTokenAudience))
	if err != nil {
		return nil, err
	}
	toolkit := federation.NewIdentityToolkit(f.IdentityToolkitURL, f.APIKey, f.RequestURI)
	log.Info().Str("service_account", minter.ClientEmail()).Msg("Firebase federation enabled")
	return federation.NewBridge(toolkit, minter)
}
