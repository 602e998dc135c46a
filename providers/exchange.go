package providers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/jrsteele09/go-auth-relay/internal/errors"
	"github.com/jrsteele09/go-auth-relay/oauthmodel"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// exchange runs the authorization_code grant with cfg and normalises the response.
// cfg.RedirectURL is sent as redirect_uri and must equal the one used at authorize.
func exchange(ctx context.Context, provider oauthmodel.ProviderType, cfg *oauth2.Config, code string, o options) (*oauthmodel.ProviderTokenBundle, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if apperrors.As(err, &retrieveErr) {
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			exchangeErr := apperrors.NewExchangeFailed(string(provider), status, retrieveErr.Body)
			log.Warn().
				Str("provider", string(provider)).
				Int("status", exchangeErr.Status).
				Str("body", exchangeErr.Body).
				Msg("Provider token exchange failed")
			return nil, exchangeErr
		}
		log.Warn().Str("provider", string(provider)).Str("reason", err.Error()).Msg("Provider token exchange failed")
		return nil, apperrors.NewExchangeFailed(string(provider), 0, nil)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		log.Warn().Str("provider", string(provider)).Msg("Provider token response has no id_token")
		return nil, fmt.Errorf("[exchange] %s: %w", provider, apperrors.ErrMissingIdentityToken)
	}

	subject, err := o.verifier.Subject(ctx, rawIDToken)
	if err != nil {
		log.Warn().Str("provider", string(provider)).Str("reason", err.Error()).Msg("Provider id_token rejected")
		return nil, fmt.Errorf("[exchange] %s: %w", provider, apperrors.ErrInvalidIdentityToken)
	}

	expiresIn := expiresInSeconds(token, o.defaultExpiresIn)

	return &oauthmodel.ProviderTokenBundle{
		Provider:        provider,
		IDToken:         rawIDToken,
		AccessToken:     token.AccessToken,
		ProviderSubject: subject,
		TokenType:       oauthmodel.BearerTokenType,
		ExpiresIn:       expiresIn,
	}, nil
}

// expiresInSeconds returns the provider's expires_in as sent. Exchange only turns it
// into token.Expiry and leaves token.ExpiresIn unset, so the raw value is read first.
func expiresInSeconds(token *oauth2.Token, fallback int) int {
	switch v := token.Extra("expires_in").(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	if !token.Expiry.IsZero() {
		if secs := int(time.Until(token.Expiry).Round(time.Second).Seconds()); secs > 0 {
			return secs
		}
	}
	return fallback
}
