package errors_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	apperrors "github.com/jrsteele09/go-auth-relay/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"configuration", fmt.Errorf("[x] apple: %w", apperrors.ErrConfiguration), http.StatusInternalServerError},
		{"invalid provider", apperrors.ErrInvalidProvider, http.StatusBadRequest},
		{"expired session", apperrors.ErrInvalidOrExpiredSession, http.StatusBadRequest},
		{"expired code", apperrors.Wrapf(apperrors.ErrInvalidOrExpiredCode, "[Redeem]"), http.StatusBadRequest},
		{"provider error", &apperrors.ProviderError{Code: "access_denied"}, http.StatusBadRequest},
		{"exchange failed", apperrors.NewExchangeFailed("google", 401, []byte("nope")), http.StatusBadRequest},
		{"missing id token", apperrors.ErrMissingIdentityToken, http.StatusBadRequest},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, apperrors.HTTPStatus(tc.err))
		})
	}
}

func TestOAuthCode(t *testing.T) {
	require.Equal(t, "unsupported_grant_type", apperrors.OAuthCode(apperrors.ErrUnsupportedGrantType))
	require.Equal(t, "invalid_grant", apperrors.OAuthCode(apperrors.ErrInvalidOrExpiredCode))
	require.Equal(t, "invalid_grant", apperrors.OAuthCode(apperrors.ErrRedirectURIMismatch))
	require.Equal(t, "access_denied", apperrors.OAuthCode(&apperrors.ProviderError{Code: "access_denied"}))
	require.Equal(t, "invalid_request", apperrors.OAuthCode(apperrors.ErrInvalidOrExpiredSession))
	require.Equal(t, "server_error", apperrors.OAuthCode(apperrors.ErrConfiguration))
}

func TestNewExchangeFailed_TruncatesBody(t *testing.T) {
	body := strings.Repeat("x", 2000)
	err := apperrors.NewExchangeFailed("apple", 400, []byte(body))
	require.Equal(t, 400, err.Status)
	require.Less(t, len(err.Body), 600)
	require.True(t, strings.HasSuffix(err.Body, "(truncated)"))
	require.NotContains(t, err.Error(), "xxx")
}

func TestProviderError_Message(t *testing.T) {
	require.Equal(t, "auth error: access_denied", (&apperrors.ProviderError{Code: "access_denied"}).Error())
	require.Equal(t, "auth error: invalid_scope - bad", (&apperrors.ProviderError{Code: "invalid_scope", Description: "bad"}).Error())
}

func TestPublicMessage(t *testing.T) {
	require.Equal(t, "invalid or expired code",
		apperrors.PublicMessage(fmt.Errorf("[Redeem] %w: store detail", apperrors.ErrInvalidOrExpiredCode)))
	require.Equal(t, "The user cancelled",
		apperrors.PublicMessage(&apperrors.ProviderError{Code: "access_denied", Description: "The user cancelled"}))
	require.Equal(t, "apple token exchange failed: status 400",
		apperrors.PublicMessage(apperrors.NewExchangeFailed("apple", 400, []byte("client_secret=abc"))))
	require.Equal(t, "internal server error",
		apperrors.PublicMessage(fmt.Errorf("redis: %w", apperrors.ErrInternal)))
}

func TestWrapf_KeepsSentinelAndCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := apperrors.Wrapf(cause, "[Callback] %w: load session", apperrors.ErrInternal)

	require.True(t, apperrors.Is(err, apperrors.ErrInternal))
	require.True(t, apperrors.Is(err, cause))
	require.Equal(t, "[Callback] internal error: load session: connection refused", err.Error())
	require.Nil(t, apperrors.Wrapf(nil, "[Callback]"))

	var exchangeErr *apperrors.ExchangeFailedError
	wrapped := apperrors.Wrapf(apperrors.NewExchangeFailed("google", 401, nil), "[exchange]")
	require.True(t, apperrors.As(wrapped, &exchangeErr))
	require.Equal(t, 401, exchangeErr.Status)
}
