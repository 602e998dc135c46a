package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types for the relay
var (
	// Configuration errors
	ErrConfiguration = errors.New("provider not configured")

	// Authorize errors
	ErrInvalidProvider     = errors.New("unsupported provider")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidRedirectURI  = errors.New("invalid redirect URI")
	ErrRedirectURIMismatch = errors.New("redirect URI does not match authorization request")

	// Session / code lifecycle errors
	ErrInvalidOrExpiredSession = errors.New("invalid or expired auth session")
	ErrInvalidOrExpiredCode    = errors.New("invalid or expired code")
	ErrUnsupportedGrantType    = errors.New("unsupported grant type")

	// Provider exchange errors
	ErrMissingIdentityToken = errors.New("no id token in provider response")
	ErrInvalidIdentityToken = errors.New("id token failed verification")

	// Federation errors
	ErrFederationFailed = errors.New("federation failed")

	// General errors
	ErrInternal = errors.New("internal error")
)

// maxBodyLength bounds provider response bodies kept in errors and logs.
const maxBodyLength = 512

// ProviderError is an OAuth error parameter returned by the identity provider on callback.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("auth error: %s", e.Code)
	}
	return fmt.Sprintf("auth error: %s - %s", e.Code, e.Description)
}

// ExchangeFailedError is returned when a provider token endpoint rejects a code exchange.
type ExchangeFailedError struct {
	Provider string
	Status   int
	Body     string
}

// NewExchangeFailed builds an ExchangeFailedError with a truncated body.
func NewExchangeFailed(provider string, status int, body []byte) *ExchangeFailedError {
	return &ExchangeFailedError{
		Provider: provider,
		Status:   status,
		Body:     Truncate(string(body)),
	}
}

func (e *ExchangeFailedError) Error() string {
	return fmt.Sprintf("%s token exchange failed: status %d", e.Provider, e.Status)
}

// Truncate shortens s to the length kept for diagnostics.
func Truncate(s string) string {
	if len(s) <= maxBodyLength {
		return s
	}
	return s[:maxBodyLength] + "...(truncated)"
}

// HTTPStatus maps an error from the relay onto the HTTP status returned to the client.
func HTTPStatus(err error) int {
	var providerErr *ProviderError
	var exchangeErr *ExchangeFailedError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrInternal):
		return http.StatusInternalServerError
	case errors.As(err, &providerErr), errors.As(err, &exchangeErr):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidProvider),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidRedirectURI),
		errors.Is(err, ErrRedirectURIMismatch),
		errors.Is(err, ErrInvalidOrExpiredSession),
		errors.Is(err, ErrInvalidOrExpiredCode),
		errors.Is(err, ErrUnsupportedGrantType),
		errors.Is(err, ErrMissingIdentityToken),
		errors.Is(err, ErrInvalidIdentityToken):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// OAuthCode maps an error onto an RFC 6749 error code for JSON error bodies.
func OAuthCode(err error) string {
	var providerErr *ProviderError
	var exchangeErr *ExchangeFailedError

	switch {
	case errors.Is(err, ErrUnsupportedGrantType):
		return "unsupported_grant_type"
	case errors.Is(err, ErrInvalidOrExpiredCode), errors.Is(err, ErrRedirectURIMismatch):
		return "invalid_grant"
	case errors.As(err, &providerErr):
		return providerErr.Code
	case errors.As(err, &exchangeErr), errors.Is(err, ErrMissingIdentityToken), errors.Is(err, ErrInvalidIdentityToken):
		return "invalid_grant"
	case errors.Is(err, ErrInvalidProvider),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidRedirectURI),
		errors.Is(err, ErrInvalidOrExpiredSession):
		return "invalid_request"
	default:
		return "server_error"
	}
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// publicErrors are safe to show to clients verbatim.
var publicErrors = []error{
	ErrInvalidProvider,
	ErrInvalidRequest,
	ErrInvalidRedirectURI,
	ErrRedirectURIMismatch,
	ErrInvalidOrExpiredSession,
	ErrInvalidOrExpiredCode,
	ErrUnsupportedGrantType,
	ErrMissingIdentityToken,
	ErrInvalidIdentityToken,
}

// PublicMessage returns a client facing description of err. Wrapped context, provider
// response bodies and anything from server side failures are left out.
func PublicMessage(err error) string {
	var providerErr *ProviderError
	var exchangeErr *ExchangeFailedError

	if errors.As(err, &providerErr) {
		if providerErr.Description != "" {
			return providerErr.Description
		}
		return providerErr.Error()
	}
	if errors.As(err, &exchangeErr) {
		return exchangeErr.Error()
	}
	if errors.Is(err, ErrConfiguration) {
		return ErrConfiguration.Error()
	}
	for _, public := range publicErrors {
		if errors.Is(err, public) {
			return public.Error()
		}
	}
	return "internal server error"
}
