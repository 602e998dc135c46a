// Package providers adapts the upstream identity providers to one contract: build the
// authorize URL for a session and exchange the returned code for provider tokens.
package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/jrsteele09/go-auth-relay/internal/errors"
	"github.com/jrsteele09/go-auth-relay/oauthmodel"
	"github.com/jrsteele09/go-auth-relay/sessions"
	"golang.org/x/oauth2"
)

const (
	callbackPathPrefix = "/v1/auth/callback/"
	defaultExpiresIn   = 3600
	defaultHTTPTimeout = 10 * time.Second
)

// Adapter is implemented once per provider. The orchestrator only selects an adapter
// by ProviderType and never branches on the provider otherwise.
type Adapter interface {
	Provider() oauthmodel.ProviderType
	// CallbackMode is how the provider delivers code and state to the callback.
	CallbackMode() oauthmodel.ResponseModeType
	// CallbackURL is the redirect_uri registered with the provider.
	CallbackURL() string
	// BuildAuthorizeURL returns the provider authorize URL with state set to sessionID.
	BuildAuthorizeURL(sessionID string) (string, error)
	// ExchangeCode trades the provider code for tokens. It never retries.
	ExchangeCode(ctx context.Context, code string, session sessions.Session) (*oauthmodel.ProviderTokenBundle, error)
}

// CallbackPath returns the relay path a provider redirects or posts back to.
func CallbackPath(provider oauthmodel.ProviderType) string {
	return callbackPathPrefix + string(provider)
}

// CallbackURL joins the public base URL with the provider callback path.
func CallbackURL(baseURL string, provider oauthmodel.ProviderType) string {
	return baseURL + CallbackPath(provider)
}

type Registry struct {
	adapters map[oauthmodel.ProviderType]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[oauthmodel.ProviderType]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Provider()] = a
	}
	return r
}

// Get returns the adapter for provider or ErrInvalidProvider.
func (r *Registry) Get(provider oauthmodel.ProviderType) (Adapter, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("[Registry.Get] %w: %q", apperrors.ErrInvalidProvider, provider)
	}
	return a, nil
}

// options are shared by every adapter.
type options struct {
	httpClient       *http.Client
	verifier         IDTokenVerifier
	endpoint         *oauth2.Endpoint
	defaultExpiresIn int
}

type Option func(*options)

// WithHTTPClient sets the client used for token endpoint calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithVerifier replaces the ID token subject extraction, e.g. with an OIDCVerifier.
func WithVerifier(v IDTokenVerifier) Option {
	return func(o *options) {
		o.verifier = v
	}
}

// WithEndpoint overrides the provider's authorize and token URLs.
func WithEndpoint(e oauth2.Endpoint) Option {
	return func(o *options) {
		o.endpoint = &e
	}
}

// WithDefaultExpiresIn sets expires_in for token responses that omit it.
func WithDefaultExpiresIn(seconds int) Option {
	return func(o *options) {
		o.defaultExpiresIn = seconds
	}
}

func newOptions(opts []Option) options {
	o := options{
		httpClient:       &http.Client{Timeout: defaultHTTPTimeout},
		verifier:         UnverifiedSubject{},
		defaultExpiresIn: defaultExpiresIn,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
