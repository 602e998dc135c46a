// Package assertion mints the short-lived ES256 client assertions Apple accepts in
// place of a static client secret.
package assertion

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-relay/token/keys"
)

const (
	// AppleAudience is the audience Apple requires on client assertions.
	AppleAudience = "https://appleid.apple.com"

	// Lifetime is the validity window of every assertion, exp - iat.
	Lifetime = time.Hour
)

// Params identify the client and the key the assertion is signed with.
type Params struct {
	ClientID string
	TeamID   string
	Audience string
	KeyPair  *keys.KeyPair
}

type Minter struct {
	nowTime func() time.Time
}

type Option func(*Minter)

func WithNowTime(nowTime func() time.Time) Option {
	return func(m *Minter) {
		m.nowTime = nowTime
	}
}

func NewMinter(opts ...Option) *Minter {
	m := &Minter{nowTime: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Sign builds {iss: team id, sub: client id, aud, iat: now, exp: now+1h} and signs it
// with the key pair, embedding the key id in the header. Call it once per exchange;
// assertions are never cached.
func (m *Minter) Sign(p Params) (string, error) {
	if p.ClientID == "" || p.TeamID == "" {
		return "", errors.New("[Minter.Sign] client id and team id are required")
	}
	if p.KeyPair == nil || p.KeyPair.KeyID == "" {
		return "", errors.New("[Minter.Sign] key pair with key id is required")
	}
	if p.KeyPair.Algorithm != keys.ES256 {
		return "", fmt.Errorf("[Minter.Sign] client assertions require ES256, key is %s", p.KeyPair.Algorithm)
	}
	audience := p.Audience
	if audience == "" {
		audience = AppleAudience
	}

	iat := m.nowTime().Unix()
	claims := jwt.MapClaims{
		"iss": p.TeamID,
		"sub": p.ClientID,
		"aud": audience,
		"iat": iat,
		"exp": iat + int64(Lifetime/time.Second),
	}
	signed, err := keys.NewKeyPairSigner(p.KeyPair).Sign(claims)
	if err != nil {
		return "", fmt.Errorf("[Minter.Sign] %w", err)
	}
	return signed, nil
}
