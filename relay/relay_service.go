// Package relay runs the authorization-code relay: authorize creates a session and
// sends the user to the provider, callback exchanges the provider code and issues a
// one-time relay code, redeem turns that code into the unified token response.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-relay/codes"
	apperrors "github.com/jrsteele09/go-auth-relay/internal/errors"
	"github.com/jrsteele09/go-auth-relay/internal/utils"
	"github.com/jrsteele09/go-auth-relay/oauthmodel"
	"github.com/jrsteele09/go-auth-relay/providers"
	"github.com/jrsteele09/go-auth-relay/sessions"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSessionTTL = 300 * time.Second
	DefaultCodeTTL    = 300 * time.Second
)

// FlowState names the lifecycle stage of one relay flow. It is only used for logging.
type FlowState string

const (
	FlowStarted         FlowState = "STARTED"
	FlowPendingCallback FlowState = "PENDING_CALLBACK"
	FlowExchanged       FlowState = "EXCHANGED"
	FlowRedeemed        FlowState = "REDEEMED"
	FlowExpired         FlowState = "EXPIRED"
	FlowFailed          FlowState = "FAILED"
)

// Federator exchanges provider tokens for a custom session token.
type Federator interface {
	Federate(ctx context.Context, provider oauthmodel.ProviderType, idToken, accessToken string) (string, error)
}

// Stores holds the two ephemeral stores the relay owns.
type Stores struct {
	Sessions sessions.Repo
	Codes    codes.Repo
}

type Service struct {
	stores          Stores
	registry        *providers.Registry
	sealer          *codes.Sealer
	federator       Federator
	sessionTTL      time.Duration
	codeTTL         time.Duration
	allowedRedirect map[string]struct{}
	nowTime         func() time.Time
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithFederator enables use_custom_token. Without it the option is ignored.
func WithFederator(f Federator) ServiceOption {
	return func(s *Service) {
		s.federator = f
	}
}

func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

func WithCodeTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.codeTTL = ttl
		}
	}
}

// WithAllowedRedirectURIs restricts client redirect URIs to an exact match list.
func WithAllowedRedirectURIs(uris []string) ServiceOption {
	return func(s *Service) {
		if len(uris) == 0 {
			return
		}
		s.allowedRedirect = make(map[string]struct{}, len(uris))
		for _, u := range uris {
			s.allowedRedirect[u] = struct{}{}
		}
	}
}

func NewService(stores Stores, registry *providers.Registry, sealer *codes.Sealer, options ...ServiceOption) (*Service, error) {
	if stores.Sessions == nil {
		return nil, errors.New("[NewService] Sessions store is required")
	}
	if stores.Codes == nil {
		return nil, errors.New("[NewService] Codes store is required")
	}
	if registry == nil {
		return nil, errors.New("[NewService] provider registry is required")
	}
	if sealer == nil {
		return nil, errors.New("[NewService] sealer is required")
	}

	s := &Service{
		stores:     stores,
		registry:   registry,
		sealer:     sealer,
		sessionTTL: DefaultSessionTTL,
		codeTTL:    DefaultCodeTTL,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Service) FederationEnabled() bool {
	return s.federator != nil
}

// Authorize validates the request, stores a new session and returns the provider
// authorize URL carrying the session id as state.
func (s *Service) Authorize(ctx context.Context, req oauthmodel.AuthorizeRequest) (string, error) {
	adapter, err := s.registry.Get(req.Provider)
	if err != nil {
		return "", err
	}
	if err := s.validateRedirectURI(req.RedirectURI); err != nil {
		return "", err
	}

	session := sessions.New(req.Provider, req.RedirectURI, utils.OptionalString(req.State), s.nowTime(), s.sessionTTL)
	authURL, err := adapter.BuildAuthorizeURL(session.ID)
	if err != nil {
		return "", err
	}
	if err := s.stores.Sessions.Put(ctx, session.ID, session, s.sessionTTL); err != nil {
		return "", apperrors.Wrapf(err, "[Authorize] %w: store session", apperrors.ErrInternal)
	}
	logFlow(session.ID, req.Provider, FlowStarted).Str("redirect_uri", req.RedirectURI).Msg("Auth session created")
	logFlow(session.ID, req.Provider, FlowPendingCallback).Msg("Redirecting to provider")
	return authURL, nil
}

func (s *Service) validateRedirectURI(redirectURI string) error {
	if redirectURI == "" {
		return fmt.Errorf("%w: redirect_uri is required", apperrors.ErrInvalidRequest)
	}
	u, err := url.Parse(redirectURI)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("%w: redirect_uri must be an absolute URI", apperrors.ErrInvalidRedirectURI)
	}
	switch strings.ToLower(u.Scheme) {
	case "javascript", "data", "vbscript", "file":
		return fmt.Errorf("%w: scheme %q is not allowed", apperrors.ErrInvalidRedirectURI, u.Scheme)
	}
	if s.allowedRedirect != nil {
		if _, ok := s.allowedRedirect[redirectURI]; !ok {
			return fmt.Errorf("%w: redirect_uri is not registered", apperrors.ErrInvalidRedirectURI)
		}
	}
	return nil
}

// Callback handles the provider response. A provider error is returned before any
// store access. The session is consumed, so one session yields at most one code.
func (s *Service) Callback(ctx context.Context, provider oauthmodel.ProviderType, params oauthmodel.CallbackParams) (*oauthmodel.CallbackResult, error) {
	if params.Error != "" {
		log.Info().Str("provider", string(provider)).Str("provider_error", params.Error).Msg("Provider returned an error")
		return nil, &apperrors.ProviderError{Code: params.Error, Description: params.ErrorDescription}
	}
	if params.Code == "" || params.State == "" {
		return nil, fmt.Errorf("%w: missing code or state", apperrors.ErrInvalidRequest)
	}
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	// A callback on the wrong provider route leaves the session for the real one.
	pending, ok, err := s.stores.Sessions.Get(ctx, params.State)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Callback] %w: load session", apperrors.ErrInternal)
	}
	if !ok {
		logFlow(params.State, provider, FlowExpired).Msg("Auth session not found or expired")
		return nil, apperrors.ErrInvalidOrExpiredSession
	}
	if pending.Provider != provider {
		logFlow(pending.ID, provider, FlowFailed).Str("session_provider", string(pending.Provider)).Msg("Callback provider does not match session")
		return nil, apperrors.ErrInvalidOrExpiredSession
	}

	session, ok, err := s.stores.Sessions.Take(ctx, params.State)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Callback] %w: consume session", apperrors.ErrInternal)
	}
	if !ok {
		logFlow(params.State, provider, FlowExpired).Msg("Auth session consumed by a concurrent callback")
		return nil, apperrors.ErrInvalidOrExpiredSession
	}

	bundle, err := adapter.ExchangeCode(ctx, params.Code, session)
	if err != nil {
		logFlow(session.ID, provider, FlowFailed).Err(err).Msg("Provider code exchange failed")
		return nil, err
	}

	relayCode := codes.New()
	sealed, err := s.sealer.Seal(relayCode, bundle)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Callback] %w: seal payload", apperrors.ErrInternal)
	}
	grant := codes.Grant{
		Code:          relayCode,
		SessionID:     session.ID,
		RedirectURI:   session.RedirectURI,
		SealedPayload: sealed,
		ExpiresAt:     s.nowTime().Add(s.codeTTL),
	}
	if err := s.stores.Codes.Put(ctx, relayCode, grant, s.codeTTL); err != nil {
		return nil, apperrors.Wrapf(err, "[Callback] %w: store code", apperrors.ErrInternal)
	}
	logFlow(session.ID, provider, FlowExchanged).Msg("Provider tokens obtained, relay code issued")

	return &oauthmodel.CallbackResult{
		Code:        relayCode,
		RedirectURI: session.RedirectURI,
		State:       session.ClientState,
	}, nil
}

// Redeem consumes the code before building the response, so concurrent redemptions of
// the same code see it at most once.
func (s *Service) Redeem(ctx context.Context, req oauthmodel.TokenRequest) (*oauthmodel.TokenResponse, error) {
	if req.GrantType != oauthmodel.AuthorizationCodeGrant {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedGrantType, req.GrantType)
	}
	if req.Code == "" {
		return nil, fmt.Errorf("%w: code is required", apperrors.ErrInvalidRequest)
	}

	grant, ok, err := s.stores.Codes.Take(ctx, req.Code)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Redeem] %w: load code", apperrors.ErrInternal)
	}
	if !ok {
		log.Info().Str("state", string(FlowExpired)).Msg("Relay code not found, expired or already redeemed")
		return nil, apperrors.ErrInvalidOrExpiredCode
	}
	if req.RedirectURI != grant.RedirectURI {
		log.Warn().Str("session_id", grant.SessionID).Str("state", string(FlowFailed)).Msg("redirect_uri does not match the authorize request")
		return nil, apperrors.ErrRedirectURIMismatch
	}

	payload, err := s.sealer.Open(grant.Code, grant.SealedPayload)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Redeem] %w", apperrors.ErrInternal)
	}

	resp := &oauthmodel.TokenResponse{
		Provider:        payload.Provider,
		IdToken:         payload.IDToken,
		AccessToken:     utils.OptionalString(payload.AccessToken),
		ProviderID:      payload.Provider.Domain(),
		ProviderSubject: utils.OptionalString(payload.ProviderSubject),
		TokenType:       oauthmodel.BearerTokenType,
		ExpiresIn:       payload.ExpiresIn,
	}
	if req.UseCustomToken {
		resp.CustomToken = s.federate(ctx, grant.SessionID, payload)
	}

	logFlow(grant.SessionID, payload.Provider, FlowRedeemed).Bool("custom_token", resp.CustomToken != nil).Msg("Relay code redeemed")
	return resp, nil
}

// federate returns nil on any failure; the base provider tokens are still returned.
func (s *Service) federate(ctx context.Context, sessionID string, payload *codes.Payload) *string {
	if s.federator == nil {
		log.Warn().Str("session_id", sessionID).Msg("Custom token requested but federation is not configured")
		return nil
	}
	customToken, err := s.federator.Federate(ctx, payload.Provider, payload.IDToken, payload.AccessToken)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Str("provider", string(payload.Provider)).Msg("Federation failed, omitting custom_token")
		return nil
	}
	return utils.Ptr(customToken)
}
