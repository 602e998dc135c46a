package providers

import (
	"context"
	"fmt"

	apperrors "github.com/jrsteele09/go-auth-relay/internal/errors"
	"github.com/jrsteele09/go-auth-relay/oauthmodel"
	"github.com/jrsteele09/go-auth-relay/sessions"
	"github.com/jrsteele09/go-auth-relay/token/assertion"
	"github.com/jrsteele09/go-auth-relay/token/keys"
	"golang.org/x/oauth2"
)

var AppleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://appleid.apple.com/auth/authorize",
	TokenURL:  "https://appleid.apple.com/auth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

var appleScopes = []string{"name", "email"}

// AppleSettings hold the Sign in with Apple service id and the .p8 signing key.
type AppleSettings struct {
	ClientID      string
	TeamID        string
	KeyID         string
	PrivateKeyPEM string
	CallbackURL   string
}

// SignedAssertionExchange is the Apple adapter. Apple posts the callback as a form and
// takes a freshly signed ES256 client assertion in place of a client secret.
type SignedAssertionExchange struct {
	config  oauth2.Config
	teamID  string
	keyPair *keys.KeyPair
	minter  *assertion.Minter
	opts    options
}

var _ Adapter = (*SignedAssertionExchange)(nil)

// NewSignedAssertionExchange parses the signing key up front so a bad key fails at
// startup. Without a client id the adapter is still built and reports
// ErrConfiguration on use.
func NewSignedAssertionExchange(settings AppleSettings, minter *assertion.Minter, opts ...Option) (*SignedAssertionExchange, error) {
	o := newOptions(opts)
	endpoint := AppleEndpoint
	if o.endpoint != nil {
		endpoint = *o.endpoint
	}
	if minter == nil {
		minter = assertion.NewMinter()
	}

	a := &SignedAssertionExchange{
		config: oauth2.Config{
			ClientID:    settings.ClientID,
			Endpoint:    endpoint,
			RedirectURL: settings.CallbackURL,
			Scopes:      appleScopes,
		},
		teamID: settings.TeamID,
		minter: minter,
		opts:   o,
	}
	if settings.ClientID == "" {
		return a, nil
	}

	kp, err := keys.LoadECPrivateKeyFromPEM(settings.KeyID, settings.PrivateKeyPEM)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[NewSignedAssertionExchange] %w: apple private key", apperrors.ErrConfiguration)
	}
	a.keyPair = kp
	return a, nil
}

func (a *SignedAssertionExchange) Provider() oauthmodel.ProviderType {
	return oauthmodel.AppleProvider
}

func (a *SignedAssertionExchange) CallbackMode() oauthmodel.ResponseModeType {
	return oauthmodel.FormPostResponseMode
}

func (a *SignedAssertionExchange) CallbackURL() string {
	return a.config.RedirectURL
}

func (a *SignedAssertionExchange) BuildAuthorizeURL(sessionID string) (string, error) {
	if a.config.ClientID == "" {
		return "", fmt.Errorf("[SignedAssertionExchange.BuildAuthorizeURL] %w: APPLE_CLIENT_ID is not set", apperrors.ErrConfiguration)
	}
	return a.config.AuthCodeURL(sessionID,
		oauth2.SetAuthURLParam("response_mode", string(oauthmodel.FormPostResponseMode)),
	), nil
}

func (a *SignedAssertionExchange) ExchangeCode(ctx context.Context, code string, _ sessions.Session) (*oauthmodel.ProviderTokenBundle, error) {
	if a.config.ClientID == "" || a.keyPair == nil {
		return nil, fmt.Errorf("[SignedAssertionExchange.ExchangeCode] %w: apple credentials are not set", apperrors.ErrConfiguration)
	}

	clientAssertion, err := a.minter.Sign(assertion.Params{
		ClientID: a.config.ClientID,
		TeamID:   a.teamID,
		Audience: assertion.AppleAudience,
		KeyPair:  a.keyPair,
	})
	if err != nil {
		return nil, apperrors.Wrapf(err, "[SignedAssertionExchange.ExchangeCode] %w", apperrors.ErrConfiguration)
	}

	cfg := a.config
	cfg.ClientSecret = clientAssertion
	return exchange(ctx, a.Provider(), &cfg, code, a.opts)
}
