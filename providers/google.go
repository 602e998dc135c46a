package providers

import (
	"context"
	"fmt"

	apperrors "github.com/jrsteele09/go-auth-relay/internal/errors"
	"github.com/jrsteele09/go-auth-relay/oauthmodel"
	"github.com/jrsteele09/go-auth-relay/sessions"
	"golang.org/x/oauth2"
)

var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

var googleScopes = []string{"openid", "email", "profile"}

// GoogleSettings are the static credentials of the Google OAuth client.
type GoogleSettings struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// RedirectExchange is the Google adapter: plain redirect callback and a static client secret.
type RedirectExchange struct {
	config oauth2.Config
	opts   options
}

var _ Adapter = (*RedirectExchange)(nil)

func NewRedirectExchange(settings GoogleSettings, opts ...Option) *RedirectExchange {
	o := newOptions(opts)
	endpoint := GoogleEndpoint
	if o.endpoint != nil {
		endpoint = *o.endpoint
	}
	return &RedirectExchange{
		config: oauth2.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  settings.CallbackURL,
			Scopes:       googleScopes,
		},
		opts: o,
	}
}

func (g *RedirectExchange) Provider() oauthmodel.ProviderType {
	return oauthmodel.GoogleProvider
}

func (g *RedirectExchange) CallbackMode() oauthmodel.ResponseModeType {
	return oauthmodel.QueryResponseMode
}

func (g *RedirectExchange) CallbackURL() string {
	return g.config.RedirectURL
}

func (g *RedirectExchange) BuildAuthorizeURL(sessionID string) (string, error) {
	if g.config.ClientID == "" {
		return "", fmt.Errorf("[RedirectExchange.BuildAuthorizeURL] %w: GOOGLE_CLIENT_ID is not set", apperrors.ErrConfiguration)
	}
	return g.config.AuthCodeURL(sessionID), nil
}

func (g *RedirectExchange) ExchangeCode(ctx context.Context, code string, _ sessions.Session) (*oauthmodel.ProviderTokenBundle, error) {
	if g.config.ClientID == "" || g.config.ClientSecret == "" {
		return nil, fmt.Errorf("[RedirectExchange.ExchangeCode] %w: google credentials are not set", apperrors.ErrConfiguration)
	}
	return exchange(ctx, g.Provider(), &g.config, code, g.opts)
}
