// Package federation turns provider tokens into a Firebase custom token: the provider
// credential is signed in through the Identity Toolkit API and the resulting account id
// is wrapped in a custom token signed with the service account key.
package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-auth-relay/internal/errors"
	"github.com/jrsteele09/go-auth-relay/oauthmodel"
	"github.com/rs/zerolog/log"
)

const (
	signInWithIdpPath  = "/v1/accounts:signInWithIdp"
	defaultHTTPTimeout = 10 * time.Second
)

type signInWithIdpRequest struct {
	PostBody            string `json:"postBody"`
	RequestURI          string `json:"requestUri"`
	ReturnIdpCredential bool   `json:"returnIdpCredential"`
	ReturnSecureToken   bool   `json:"returnSecureToken"`
}

type signInWithIdpResponse struct {
	LocalID string `json:"localId"`
}

// IdentityToolkit calls the accounts:signInWithIdp REST operation.
type IdentityToolkit struct {
	baseURL    string
	apiKey     string
	requestURI string
	httpClient *http.Client
}

type ToolkitOption func(*IdentityToolkit)

func WithHTTPClient(c *http.Client) ToolkitOption {
	return func(t *IdentityToolkit) {
		t.httpClient = c
	}
}

func NewIdentityToolkit(baseURL, apiKey, requestURI string, opts ...ToolkitOption) *IdentityToolkit {
	t := &IdentityToolkit{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		requestURI: requestURI,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// PostBody assembles the provider credential in the form signInWithIdp expects.
func PostBody(provider oauthmodel.ProviderType, idToken, accessToken string) string {
	body := "id_token=" + url.QueryEscape(idToken) + "&providerId=" + provider.Domain()
	if accessToken != "" {
		body += "&access_token=" + url.QueryEscape(accessToken)
	}
	return body
}

// SignInWithIdp returns the Firebase account id (localId) for the provider credential.
func (t *IdentityToolkit) SignInWithIdp(ctx context.Context, provider oauthmodel.ProviderType, idToken, accessToken string) (string, error) {
	if !provider.Valid() {
		return "", fmt.Errorf("[SignInWithIdp] %w: %w", apperrors.ErrFederationFailed, apperrors.ErrInvalidProvider)
	}

	payload, err := json.Marshal(signInWithIdpRequest{
		PostBody:            PostBody(provider, idToken, accessToken),
		RequestURI:          t.requestURI,
		ReturnIdpCredential: true,
		ReturnSecureToken:   true,
	})
	if err != nil {
		return "", apperrors.Wrapf(err, "[SignInWithIdp] %w", apperrors.ErrFederationFailed)
	}

	endpoint := t.baseURL + signInWithIdpPath + "?" + url.Values{"key": {t.apiKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("[SignInWithIdp] %w: build request", apperrors.ErrFederationFailed)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// *url.Error repeats the URL, which carries the API key.
		log.Warn().Str("provider", string(provider)).Msg("Identity toolkit request failed")
		return "", fmt.Errorf("[SignInWithIdp] %w: request failed", apperrors.ErrFederationFailed)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperrors.Wrapf(err, "[SignInWithIdp] %w: read response", apperrors.ErrFederationFailed)
	}
	if resp.StatusCode != http.StatusOK {
		log.Warn().
			Str("provider", string(provider)).
			Int("status", resp.StatusCode).
			Str("body", apperrors.Truncate(string(body))).
			Msg("Identity toolkit signInWithIdp failed")
		return "", fmt.Errorf("[SignInWithIdp] %w: status %d", apperrors.ErrFederationFailed, resp.StatusCode)
	}

	var result signInWithIdpResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", apperrors.Wrapf(err, "[SignInWithIdp] %w: decode response", apperrors.ErrFederationFailed)
	}
	if result.LocalID == "" {
		return "", fmt.Errorf("[SignInWithIdp] %w: no localId in response", apperrors.ErrFederationFailed)
	}
	return result.LocalID, nil
}
