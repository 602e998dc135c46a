package federation

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-relay/token/keys"
	"golang.org/x/oauth2/google"
)

// DefaultCustomTokenAudience is the audience Firebase requires on custom tokens.
const DefaultCustomTokenAudience = "https://identitytoolkit.googleapis.com/google.identity.identitytoolkit.v1.IdentityToolkit"

const customTokenLifetime = time.Hour

// CustomTokenMinter signs Firebase custom tokens with a service account key.
type CustomTokenMinter struct {
	clientEmail string
	audience    string
	signer      *keys.KeyPairSigner
	nowTime     func() time.Time
}

type MinterOption func(*CustomTokenMinter)

func WithNowTime(nowTime func() time.Time) MinterOption {
	return func(m *CustomTokenMinter) {
		m.nowTime = nowTime
	}
}

func WithAudience(audience string) MinterOption {
	return func(m *CustomTokenMinter) {
		if audience != "" {
			m.audience = audience
		}
	}
}

// NewCustomTokenMinter loads the service account JSON. Errors never echo the key.
func NewCustomTokenMinter(serviceAccountJSON []byte, opts ...MinterOption) (*CustomTokenMinter, error) {
	cfg, err := google.JWTConfigFromJSON(serviceAccountJSON)
	if err != nil {
		return nil, errors.New("[NewCustomTokenMinter] invalid service account credentials")
	}
	if cfg.Email == "" {
		return nil, errors.New("[NewCustomTokenMinter] service account has no client_email")
	}
	kp, err := keys.LoadRSAPrivateKeyFromPEM(cfg.PrivateKeyID, cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("[NewCustomTokenMinter] %w", err)
	}

	m := &CustomTokenMinter{
		clientEmail: cfg.Email,
		audience:    DefaultCustomTokenAudience,
		signer:      keys.NewKeyPairSigner(kp),
		nowTime:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *CustomTokenMinter) ClientEmail() string {
	return m.clientEmail
}

// Mint returns an RS256 custom token for uid, valid for one hour.
func (m *CustomTokenMinter) Mint(uid string) (string, error) {
	if uid == "" || len(uid) > 128 {
		return "", errors.New("[CustomTokenMinter.Mint] uid must be 1 to 128 characters")
	}
	iat := m.nowTime().Unix()
	signed, err := m.signer.Sign(jwt.MapClaims{
		"iss": m.clientEmail,
		"sub": m.clientEmail,
		"aud": m.audience,
		"iat": iat,
		"exp": iat + int64(customTokenLifetime/time.Second),
		"uid": uid,
	})
	if err != nil {
		return "", fmt.Errorf("[CustomTokenMinter.Mint] %w", err)
	}
	return signed, nil
}
