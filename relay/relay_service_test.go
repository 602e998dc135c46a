package relay_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-relay/codes"
	"github.com/jrsteele09/go-auth-relay/ephemeral"
	"github.com/jrsteele09/go-auth-relay/federation"
	apperrors "github.com/jrsteele09/go-auth-relay/internal/errors"
	"github.com/jrsteele09/go-auth-relay/oauthmodel"
	"github.com/jrsteele09/go-auth-relay/providers"
	"github.com/jrsteele09/go-auth-relay/relay"
	"github.com/jrsteele09/go-auth-relay/sessions"
	"github.com/jrsteele09/go-auth-relay/token/keys"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testBaseURL     = "https://relay.example.com"
	testRedirectURI = "app://cb"
	testClientState = "client-state-1"
	testSubject     = "google-user-1"
)

// countingRepo records every call made to the wrapped store.
type countingRepo[T any] struct {
	ephemeral.Repo[T]
	calls atomic.Int32
}

func (c *countingRepo[T]) Put(ctx context.Context, key string, value T, ttl time.Duration) error {
	c.calls.Add(1)
	return c.Repo.Put(ctx, key, value, ttl)
}

func (c *countingRepo[T]) Get(ctx context.Context, key string) (T, bool, error) {
	c.calls.Add(1)
	return c.Repo.Get(ctx, key)
}

func (c *countingRepo[T]) Delete(ctx context.Context, key string) error {
	c.calls.Add(1)
	return c.Repo.Delete(ctx, key)
}

func (c *countingRepo[T]) Take(ctx context.Context, key string) (T, bool, error) {
	c.calls.Add(1)
	return c.Repo.Take(ctx, key)
}

type fakeProvider struct {
	*httptest.Server
	mu     sync.Mutex
	forms  []url.Values
	status int
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": testSubject}).SignedString([]byte("k"))
	require.NoError(t, err)

	p := &fakeProvider{status: http.StatusOK}
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		p.mu.Lock()
		p.forms = append(p.forms, r.PostForm)
		status := p.status
		p.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "google-access-token",
			"token_type":   "Bearer",
			"expires_in":   1200,
			"id_token":     idToken,
		})
	}))
	t.Cleanup(p.Close)
	return p
}

func (p *fakeProvider) exchangeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.forms)
}

type fakeFederator struct {
	err   error
	calls int
}

func (f *fakeFederator) Federate(_ context.Context, _ oauthmodel.ProviderType, _, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "custom-token", nil
}

type testFixture struct {
	now      time.Time
	provider *fakeProvider
	google   *providers.RedirectExchange
	sessions *countingRepo[sessions.Session]
	codes    *countingRepo[codes.Grant]
	service  *relay.Service
}

func setupTestFixture(t *testing.T, opts ...relay.ServiceOption) *testFixture {
	t.Helper()
	f := &testFixture{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	f.provider = newFakeProvider(t)
	f.google = providers.NewRedirectExchange(providers.GoogleSettings{
		ClientID:     "google-client",
		ClientSecret: "google-secret",
		CallbackURL:  providers.CallbackURL(testBaseURL, oauthmodel.GoogleProvider),
	}, providers.WithEndpoint(oauth2.Endpoint{
		AuthURL:   f.provider.URL + "/authorize",
		TokenURL:  f.provider.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}))
	apple, err := providers.NewSignedAssertionExchange(providers.AppleSettings{
		CallbackURL: providers.CallbackURL(testBaseURL, oauthmodel.AppleProvider),
	}, nil)
	require.NoError(t, err)

	f.sessions = &countingRepo[sessions.Session]{Repo: ephemeral.NewInMemoryRepo(ephemeral.WithNowTime[sessions.Session](clock))}
	f.codes = &countingRepo[codes.Grant]{Repo: ephemeral.NewInMemoryRepo(ephemeral.WithNowTime[codes.Grant](clock))}

	key, err := codes.GenerateMasterKey()
	require.NoError(t, err)
	sealer, err := codes.NewSealer(key)
	require.NoError(t, err)

	opts = append([]relay.ServiceOption{relay.WithNowTime(clock)}, opts...)
	f.service, err = relay.NewService(
		relay.Stores{Sessions: f.sessions, Codes: f.codes},
		providers.NewRegistry(f.google, apple),
		sealer,
		opts...,
	)
	require.NoError(t, err)
	return f
}

// authorize runs /authorize and returns the session id sent to the provider as state.
func (f *testFixture) authorize(t *testing.T, clientState string) string {
	t.Helper()
	authURL, err := f.service.Authorize(context.Background(), oauthmodel.AuthorizeRequest{
		Provider:    oauthmodel.GoogleProvider,
		RedirectURI: testRedirectURI,
		State:       clientState,
	})
	require.NoError(t, err)
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func (f *testFixture) callback(t *testing.T, sessionID string) *oauthmodel.CallbackResult {
	t.Helper()
	result, err := f.service.Callback(context.Background(), oauthmodel.GoogleProvider, oauthmodel.CallbackParams{
		Code:  "abc123",
		State: sessionID,
	})
	require.NoError(t, err)
	return result
}

func redeemRequest(code string) oauthmodel.TokenRequest {
	return oauthmodel.TokenRequest{
		GrantType:   oauthmodel.AuthorizationCodeGrant,
		Code:        code,
		RedirectURI: testRedirectURI,
	}
}

func TestNewService_Validation(t *testing.T) {
	_, err := relay.NewService(relay.Stores{}, nil, nil)
	require.Error(t, err)
}

func TestGoogleFlow_NoClientState(t *testing.T) {
	f := setupTestFixture(t)

	sessionID := f.authorize(t, "")
	session, ok, err := f.sessions.Get(context.Background(), sessionID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Nil(t, session.ClientState)
	require.Equal(t, oauthmodel.GoogleProvider, session.Provider)

	result := f.callback(t, sessionID)
	require.Equal(t, testRedirectURI, result.RedirectURI)
	require.Nil(t, result.State)
	require.NotEmpty(t, result.Code)

	form := f.provider.forms[0]
	require.Equal(t, "abc123", form.Get("code"))
	require.Equal(t, f.google.CallbackURL(), form.Get("redirect_uri"))

	resp, err := f.service.Redeem(context.Background(), redeemRequest(result.Code))
	require.NoError(t, err)
	require.Equal(t, oauthmodel.GoogleProvider, resp.Provider)
	require.Equal(t, "google.com", resp.ProviderID)
	require.Equal(t, "Bearer", resp.TokenType)
	require.Equal(t, 1200, resp.ExpiresIn)
	require.Equal(t, "google-access-token", *resp.AccessToken)
	require.Equal(t, testSubject, *resp.ProviderSubject)
	require.NotEmpty(t, resp.IdToken)
	require.Nil(t, resp.CustomToken)
}

func TestCallback_EchoesClientState(t *testing.T) {
	f := setupTestFixture(t)

	result := f.callback(t, f.authorize(t, testClientState))
	require.NotNil(t, result.State)
	require.Equal(t, testClientState, *result.State)
}

func TestAuthorize_Errors(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.service.Authorize(ctx, oauthmodel.AuthorizeRequest{Provider: "github", RedirectURI: testRedirectURI})
	require.ErrorIs(t, err, apperrors.ErrInvalidProvider)

	_, err = f.service.Authorize(ctx, oauthmodel.AuthorizeRequest{Provider: oauthmodel.GoogleProvider})
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	_, err = f.service.Authorize(ctx, oauthmodel.AuthorizeRequest{Provider: oauthmodel.GoogleProvider, RedirectURI: "not-absolute"})
	require.ErrorIs(t, err, apperrors.ErrInvalidRedirectURI)

	_, err = f.service.Authorize(ctx, oauthmodel.AuthorizeRequest{Provider: oauthmodel.GoogleProvider, RedirectURI: "javascript:alert(1)"})
	require.ErrorIs(t, err, apperrors.ErrInvalidRedirectURI)

	_, err = f.service.Authorize(ctx, oauthmodel.AuthorizeRequest{Provider: oauthmodel.AppleProvider, RedirectURI: testRedirectURI})
	require.ErrorIs(t, err, apperrors.ErrConfiguration)
	require.Equal(t, http.StatusInternalServerError, apperrors.HTTPStatus(err))

	require.Equal(t, int32(0), f.sessions.calls.Load(), "rejected requests must not create sessions")
}

func TestAuthorize_AllowedRedirectURIs(t *testing.T) {
	f := setupTestFixture(t, relay.WithAllowedRedirectURIs([]string{"app://registered"}))

	_, err := f.service.Authorize(context.Background(), oauthmodel.AuthorizeRequest{Provider: oauthmodel.GoogleProvider, RedirectURI: testRedirectURI})
	require.ErrorIs(t, err, apperrors.ErrInvalidRedirectURI)

	_, err = f.service.Authorize(context.Background(), oauthmodel.AuthorizeRequest{Provider: oauthmodel.GoogleProvider, RedirectURI: "app://registered"})
	require.NoError(t, err)
}

func TestCallback_ProviderErrorBeforeStoreAccess(t *testing.T) {
	f := setupTestFixture(t)
	sessionID := f.authorize(t, "")
	before := f.sessions.calls.Load()

	_, err := f.service.Callback(context.Background(), oauthmodel.GoogleProvider, oauthmodel.CallbackParams{
		State: sessionID,
		Error: "access_denied",
	})

	var providerErr *apperrors.ProviderError
	require.ErrorAs(t, err, &providerErr)
	require.Equal(t, "access_denied", providerErr.Code)
	require.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))
	require.Equal(t, before, f.sessions.calls.Load())
	require.Equal(t, int32(0), f.codes.calls.Load())
	require.Equal(t, 0, f.provider.exchangeCount())
}

func TestCallback_MissingParams(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Callback(context.Background(), oauthmodel.GoogleProvider, oauthmodel.CallbackParams{State: "s"})
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestCallback_SessionExpired(t *testing.T) {
	f := setupTestFixture(t)
	sessionID := f.authorize(t, "")

	f.now = f.now.Add(relay.DefaultSessionTTL)

	_, err := f.service.Callback(context.Background(), oauthmodel.GoogleProvider, oauthmodel.CallbackParams{Code: "abc123", State: sessionID})
	require.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredSession)
	require.Equal(t, 0, f.provider.exchangeCount())
}

func TestCallback_SessionConsumedOnce(t *testing.T) {
	f := setupTestFixture(t)
	sessionID := f.authorize(t, "")
	f.callback(t, sessionID)

	_, err := f.service.Callback(context.Background(), oauthmodel.GoogleProvider, oauthmodel.CallbackParams{Code: "abc123", State: sessionID})
	require.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredSession)
	require.Equal(t, 1, f.provider.exchangeCount())
}

func TestCallback_ProviderMismatch(t *testing.T) {
	f := setupTestFixture(t)
	sessionID := f.authorize(t, "")

	_, err := f.service.Callback(context.Background(), oauthmodel.AppleProvider, oauthmodel.CallbackParams{Code: "abc123", State: sessionID})
	require.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredSession)
	require.Equal(t, 0, f.provider.exchangeCount())

	// The session survives for the provider it was created for
	result := f.callback(t, sessionID)
	require.NotEmpty(t, result.Code)
}

func TestCallback_ConcurrentCallbacksIssueOneCode(t *testing.T) {
	f := setupTestFixture(t)
	sessionID := f.authorize(t, "")

	const workers = 16
	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Callback(context.Background(), oauthmodel.GoogleProvider, oauthmodel.CallbackParams{Code: "abc123", State: sessionID})
			if err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), succeeded.Load())
	require.Equal(t, 1, f.provider.exchangeCount())
}

// failingRepo fails every write with the store unavailable.
type failingRepo[T any] struct {
	ephemeral.Repo[T]
}

func (failingRepo[T]) Put(context.Context, string, T, time.Duration) error {
	return fmt.Errorf("[failingRepo.Put] %w", ephemeral.ErrUnavailable)
}

func TestAuthorize_StoreUnavailable(t *testing.T) {
	f := setupTestFixture(t)
	key, err := codes.GenerateMasterKey()
	require.NoError(t, err)
	sealer, err := codes.NewSealer(key)
	require.NoError(t, err)

	service, err := relay.NewService(relay.Stores{
		Sessions: failingRepo[sessions.Session]{Repo: ephemeral.NewInMemoryRepo[sessions.Session]()},
		Codes:    f.codes,
	}, providers.NewRegistry(f.google), sealer)
	require.NoError(t, err)

	_, err = service.Authorize(context.Background(), oauthmodel.AuthorizeRequest{
		Provider:    oauthmodel.GoogleProvider,
		RedirectURI: testRedirectURI,
	})
	require.ErrorIs(t, err, apperrors.ErrInternal)
	require.ErrorIs(t, err, ephemeral.ErrUnavailable)
	require.Equal(t, http.StatusInternalServerError, apperrors.HTTPStatus(err))
	require.Equal(t, "internal server error", apperrors.PublicMessage(err))
}

func TestCallback_ExchangeFailed(t *testing.T) {
	f := setupTestFixture(t)
	f.provider.status = http.StatusBadRequest
	sessionID := f.authorize(t, "")

	_, err := f.service.Callback(context.Background(), oauthmodel.GoogleProvider, oauthmodel.CallbackParams{Code: "abc123", State: sessionID})

	var exchangeErr *apperrors.ExchangeFailedError
	require.ErrorAs(t, err, &exchangeErr)
	require.Equal(t, http.StatusBadRequest, exchangeErr.Status)
	require.Equal(t, int32(0), f.codes.calls.Load())
}

func TestRedeem_ExactlyOnce(t *testing.T) {
	f := setupTestFixture(t)
	code := f.callback(t, f.authorize(t, "")).Code

	_, err := f.service.Redeem(context.Background(), redeemRequest(code))
	require.NoError(t, err)

	_, err = f.service.Redeem(context.Background(), redeemRequest(code))
	require.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredCode)
}

func TestRedeem_ConcurrentExactlyOnce(t *testing.T) {
	f := setupTestFixture(t)
	code := f.callback(t, f.authorize(t, "")).Code

	var successes, failures atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.service.Redeem(context.Background(), redeemRequest(code)); err == nil {
				successes.Add(1)
			} else if errors.Is(err, apperrors.ErrInvalidOrExpiredCode) {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), successes.Load())
	require.Equal(t, int32(31), failures.Load())
}

func TestRedeem_CodeExpired(t *testing.T) {
	f := setupTestFixture(t, relay.WithCodeTTL(time.Minute))
	code := f.callback(t, f.authorize(t, "")).Code

	f.now = f.now.Add(time.Minute)

	_, err := f.service.Redeem(context.Background(), redeemRequest(code))
	require.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredCode)
}

func TestRedeem_Errors(t *testing.T) {
	f := setupTestFixture(t)
	code := f.callback(t, f.authorize(t, "")).Code

	req := redeemRequest(code)
	req.GrantType = "refresh_token"
	_, err := f.service.Redeem(context.Background(), req)
	require.ErrorIs(t, err, apperrors.ErrUnsupportedGrantType)
	require.Equal(t, "unsupported_grant_type", apperrors.OAuthCode(err))

	_, err = f.service.Redeem(context.Background(), redeemRequest("unknown"))
	require.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredCode)

	req = redeemRequest(code)
	req.RedirectURI = "app://other"
	_, err = f.service.Redeem(context.Background(), req)
	require.ErrorIs(t, err, apperrors.ErrRedirectURIMismatch)
	require.Equal(t, "invalid_grant", apperrors.OAuthCode(err))

	_, err = f.service.Redeem(context.Background(), redeemRequest(code))
	require.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredCode, "a mismatched redeem still consumes the code")
}

func TestRedeem_CustomToken(t *testing.T) {
	federator := &fakeFederator{}
	f := setupTestFixture(t, relay.WithFederator(federator))
	require.True(t, f.service.FederationEnabled())

	req := redeemRequest(f.callback(t, f.authorize(t, "")).Code)
	req.UseCustomToken = true
	resp, err := f.service.Redeem(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "custom-token", *resp.CustomToken)
	require.Equal(t, 1, federator.calls)
}

func TestRedeem_CustomTokenNotRequested(t *testing.T) {
	federator := &fakeFederator{}
	f := setupTestFixture(t, relay.WithFederator(federator))

	resp, err := f.service.Redeem(context.Background(), redeemRequest(f.callback(t, f.authorize(t, "")).Code))
	require.NoError(t, err)
	require.Nil(t, resp.CustomToken)
	require.Equal(t, 0, federator.calls)
}

func TestRedeem_FederationFailureIsNonFatal(t *testing.T) {
	toolkitServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"INVALID_IDP_RESPONSE"}}`))
	}))
	t.Cleanup(toolkitServer.Close)

	kp, err := keys.GenerateRSAKeyPair("sa", 2048)
	require.NoError(t, err)
	pemData, err := kp.ExportPrivateKeyPEM()
	require.NoError(t, err)
	accountJSON, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"private_key_id": "sa",
		"private_key":    pemData,
		"client_email":   "relay@example.iam.gserviceaccount.com",
		"token_uri":      "https://oauth2.googleapis.com/token",
	})
	require.NoError(t, err)
	minter, err := federation.NewCustomTokenMinter(accountJSON)
	require.NoError(t, err)
	bridge, err := federation.NewBridge(federation.NewIdentityToolkit(toolkitServer.URL, "key", "http://localhost"), minter)
	require.NoError(t, err)

	f := setupTestFixture(t, relay.WithFederator(bridge))
	req := redeemRequest(f.callback(t, f.authorize(t, "")).Code)
	req.UseCustomToken = true

	resp, err := f.service.Redeem(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, resp.IdToken)
	require.NotNil(t, resp.AccessToken)
	require.Nil(t, resp.CustomToken)
}

func TestRedeem_CustomTokenWithoutFederator(t *testing.T) {
	f := setupTestFixture(t)

	req := redeemRequest(f.callback(t, f.authorize(t, "")).Code)
	req.UseCustomToken = true
	resp, err := f.service.Redeem(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, resp.CustomToken)
}
